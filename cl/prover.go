package cl

import (
	"crypto/rand"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/go-errors/errors"

	"github.com/kdenhartog/indy-crypto/internal/common"
)

// MasterSecret is the prover-chosen scalar bound into every credential the
// prover receives. Reusing it across issuers links the credentials to one
// prover; BlindMasterSecret never regenerates a supplied secret.
type MasterSecret struct {
	MS *big.Int
}

// Zeroize wipes the secret scalar.
func (m *MasterSecret) Zeroize() {
	common.Wipe(m.MS)
}

// NewMasterSecret samples a fresh master secret.
func NewMasterSecret() (*MasterSecret, error) {
	return NewMasterSecretFromReader(rand.Reader)
}

// NewMasterSecretFromReader is NewMasterSecret with an injected randomness
// source.
func NewMasterSecretFromReader(rng io.Reader) (*MasterSecret, error) {
	ms, err := common.RandomBigInt(rng, DefaultParams.LMS)
	if err != nil {
		return nil, err
	}
	return &MasterSecret{MS: ms}, nil
}

// BlindedMasterSecret is the prover's commitment to its master secret,
// together with a proof of knowledge of the committed exponents. Ur is
// present only under issuer keys with a revocation part.
type BlindedMasterSecret struct {
	U  *big.Int
	Ur *bls12381.G1Affine

	// Schnorr proof of knowledge of (ms, v').
	C        *big.Int
	VDashCap *big.Int
	MSCap    *big.Int
}

// MasterSecretBlindingData is the prover-side counterpart of a blinded
// master secret. It never leaves the prover.
type MasterSecretBlindingData struct {
	VPrime  *big.Int
	VrPrime *big.Int
	ms      *big.Int
}

// Zeroize wipes the blinding exponents.
func (d *MasterSecretBlindingData) Zeroize() {
	common.WipeAll(d.VPrime, d.VrPrime)
}

// BlindMasterSecret commits to ms under the issuer's key and proves
// knowledge of the committed exponents.
func BlindMasterSecret(pub *IssuerPublicKey, ms *MasterSecret) (*BlindedMasterSecret, *MasterSecretBlindingData, error) {
	return BlindMasterSecretFromReader(rand.Reader, pub, ms)
}

// BlindMasterSecretFromReader is BlindMasterSecret with an injected
// randomness source.
func BlindMasterSecretFromReader(rng io.Reader, pub *IssuerPublicKey, ms *MasterSecret) (*BlindedMasterSecret, *MasterSecretBlindingData, error) {
	if pub == nil || ms == nil || ms.MS == nil {
		return nil, nil, errors.WrapPrefix(ErrInvalidStructure, "nil blinding input", 0)
	}
	p := pub.Primary
	params := pub.Params

	vPrime, err := common.RandomBigInt(rng, params.LVPrime)
	if err != nil {
		return nil, nil, err
	}

	// U = S^v' * RMS^ms mod n
	u := new(big.Int).Exp(p.S, vPrime, p.N)
	u.Mul(u, new(big.Int).Exp(p.RMS, ms.MS, p.N)).Mod(u, p.N)

	// Schnorr commitment for (ms, v'): widths leave LC + 80 bits of
	// statistical slack over the secrets.
	vTilde, err := common.RandomBigInt(rng, params.LVPrime+params.LC+80)
	if err != nil {
		return nil, nil, err
	}
	msTilde, err := common.RandomBigInt(rng, params.LMS+params.LC+80)
	if err != nil {
		return nil, nil, err
	}
	uTilde := new(big.Int).Exp(p.S, vTilde, p.N)
	uTilde.Mul(uTilde, new(big.Int).Exp(p.RMS, msTilde, p.N)).Mod(uTilde, p.N)

	c := blindingChallenge(params, u, uTilde)

	vDashCap := new(big.Int).Mul(c, vPrime)
	vDashCap.Add(vDashCap, vTilde)
	msCap := new(big.Int).Mul(c, ms.MS)
	msCap.Add(msCap, msTilde)
	common.WipeAll(vTilde, msTilde)

	blinded := &BlindedMasterSecret{U: u, C: c, VDashCap: vDashCap, MSCap: msCap}
	data := &MasterSecretBlindingData{VPrime: vPrime, ms: ms.MS}

	if pub.Revocation != nil {
		vrPrime, err := randomScalar(rng)
		if err != nil {
			return nil, nil, err
		}
		// Ur = h2^vr' * h1^ms in G1
		msq := new(big.Int).Mod(ms.MS, GroupOrder)
		ur := g1Mul(&pub.Revocation.H2, vrPrime)
		h1ms := g1Mul(&pub.Revocation.H1, msq)
		ur = g1Add(&ur, &h1ms)
		blinded.Ur = &ur
		data.VrPrime = vrPrime
	}

	return blinded, data, nil
}

// blindingChallenge hashes the commitment pair into the blinding proof's
// Fiat-Shamir challenge.
func blindingChallenge(params *Params, u, uTilde *big.Int) *big.Int {
	buf := make([]byte, 0, 2*params.nByteLen())
	buf = common.AppendFixed(buf, u, params.nByteLen())
	buf = common.AppendFixed(buf, uTilde, params.nByteLen())
	return common.IntHashSHA256(buf)
}

// verifyBlindedMasterSecret checks the Schnorr proof carried by a blinded
// master secret before the issuer signs over it.
func verifyBlindedMasterSecret(pub *IssuerPublicKey, bms *BlindedMasterSecret) error {
	p := pub.Primary
	if bms.U == nil || bms.C == nil || bms.VDashCap == nil || bms.MSCap == nil {
		return errors.WrapPrefix(ErrInvalidStructure, "incomplete blinded master secret", 0)
	}
	uInvC, err := common.ModPow(bms.U, new(big.Int).Neg(bms.C), p.N)
	if err != nil {
		return errors.WrapPrefix(ErrInvalidStructure, "blinded master secret is not invertible", 0)
	}
	uTilde := new(big.Int).Exp(p.S, bms.VDashCap, p.N)
	uTilde.Mul(uTilde, new(big.Int).Exp(p.RMS, bms.MSCap, p.N)).Mod(uTilde, p.N)
	uTilde.Mul(uTilde, uInvC).Mod(uTilde, p.N)

	c := blindingChallenge(pub.Params, bms.U, uTilde)
	if c.Cmp(bms.C) != 0 {
		return errors.WrapPrefix(ErrInvalidStructure, "blinded master secret proof does not verify", 0)
	}
	return nil
}

// ProcessClaimSignature folds the prover's blinding shares into a freshly
// issued signature and verifies it against the claim values. The signature
// is mutated in place; on failure it is left untouched.
func ProcessClaimSignature(sig *ClaimSignature, blindingData *MasterSecretBlindingData,
	values *ClaimValues, pub *IssuerPublicKey, revReg *RevocationRegistryPublic) error {

	if sig == nil || sig.Primary == nil || blindingData == nil || values == nil || pub == nil {
		return errors.WrapPrefix(ErrInvalidStructure, "nil signature input", 0)
	}
	p := pub.Primary

	v := new(big.Int).Add(sig.Primary.V, blindingData.VPrime)

	// A^e * S^v * RMS^ms * RCtxt^m2 * prod R[a]^value[a] must equal Z.
	check := new(big.Int).Exp(sig.Primary.A, sig.Primary.E, p.N)
	check.Mul(check, new(big.Int).Exp(p.S, v, p.N)).Mod(check, p.N)
	check.Mul(check, new(big.Int).Exp(p.RMS, blindingData.ms, p.N)).Mod(check, p.N)
	check.Mul(check, new(big.Int).Exp(p.RCtxt, sig.M2, p.N)).Mod(check, p.N)
	for _, a := range p.Attrs {
		val := values.Value(a)
		if val == nil {
			return errors.WrapPrefix(ErrInvalidStructure, "claim values do not match the key schema", 0)
		}
		check.Mul(check, new(big.Int).Exp(p.R[a], val, p.N)).Mod(check, p.N)
	}
	if check.Cmp(p.Z) != 0 {
		return errors.WrapPrefix(ErrInvalidStructure, "claim signature does not verify", 0)
	}

	var vr, m2 *big.Int
	if sig.NonRevocation != nil {
		if pub.Revocation == nil || revReg == nil || blindingData.VrPrime == nil {
			return errors.WrapPrefix(ErrInvalidStructure, "missing revocation context", 0)
		}
		nr := sig.NonRevocation
		vr = new(big.Int).Mod(new(big.Int).Add(nr.Vr, blindingData.VrPrime), GroupOrder)
		msq := new(big.Int).Mod(blindingData.ms, GroupOrder)
		m2 = new(big.Int).Mod(new(big.Int).Add(nr.M2, msq), GroupOrder)

		ok, err := verifyNonRevocationClaim(pub.Revocation, revReg, nr, m2, vr)
		if err != nil {
			return err
		}
		if !ok {
			return errors.WrapPrefix(ErrInvalidStructure, "non-revocation claim does not verify", 0)
		}
	}

	// All checks passed; commit the folded values.
	sig.Primary.V = v
	if sig.NonRevocation != nil {
		sig.NonRevocation.Vr = vr
		sig.NonRevocation.M2 = m2
	}
	return nil
}

// verifyNonRevocationClaim checks the membership signature pairing equation
// e(sigma, y * hCap^c) == e(h0 * h1^m2 * h2^vr * g_i, hCap) and the
// accumulator witness.
func verifyNonRevocationClaim(revPub *IssuerRevocationPublicKey, reg *RevocationRegistryPublic,
	nr *NonRevocationClaim, m2, vr *big.Int) (bool, error) {

	yc := g2Mul(&revPub.HCap, nr.C)
	yc = g2Add(&revPub.Y, &yc)
	lhs, err := pair(&nr.Sigma, &yc)
	if err != nil {
		return false, err
	}

	base := g1Mul(&revPub.H1, m2)
	base = g1Add(&revPub.H0, &base)
	h2vr := g1Mul(&revPub.H2, vr)
	base = g1Add(&base, &h2vr)
	base = g1Add(&base, &nr.GI)
	rhs, err := pair(&base, &revPub.HCap)
	if err != nil {
		return false, err
	}
	if !lhs.Equal(&rhs) {
		return false, nil
	}

	return checkWitness(revPub, reg, nr.Witness)
}
