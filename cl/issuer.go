package cl

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/go-errors/errors"

	"github.com/kdenhartog/indy-crypto/internal/common"
)

// PrimaryClaimSignature is the CL triple (A, e, v). Until the prover runs
// ProcessClaimSignature, V holds only the issuer's share v''.
type PrimaryClaimSignature struct {
	A *big.Int
	E *big.Int
	V *big.Int
}

// NonRevocationClaim ties a claim to an accumulator index. Vr holds the
// issuer's share vr'' until the prover folds in its blinding share.
type NonRevocationClaim struct {
	Sigma   bls12381.G1Affine
	C       *big.Int
	Vr      *big.Int
	Witness *Witness
	GI      bls12381.G1Affine
	I       uint32
	M2      *big.Int // m2 reduced into the scalar field
}

// ClaimSignature is a signature over a claim's attribute values plus the
// prover's hidden master secret. The non-revocation part exists iff the
// issuer key carries a revocation part and an index was requested.
type ClaimSignature struct {
	Primary       *PrimaryClaimSignature
	NonRevocation *NonRevocationClaim
	M2            *big.Int // context attribute, H(proverID || revIdx)
}

// claimContext derives the context attribute m2 binding the claim to the
// prover identity and the revocation index (0 when absent).
func claimContext(proverID string, revIdx uint32) *big.Int {
	buf := make([]byte, 0, len(proverID)+4)
	buf = append(buf, []byte(proverID)...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], revIdx)
	buf = append(buf, idx[:]...)
	return common.IntHashSHA256(buf)
}

// SignClaim signs the claim values together with the prover's blinded
// master secret. When revIdx is non-zero the claim is registered in the
// revocation registry and a witness is issued; the registry is mutated only
// after every check has passed.
func SignClaim(proverID string, blindedMS *BlindedMasterSecret, values *ClaimValues,
	pub *IssuerPublicKey, priv *IssuerPrivateKey,
	revIdx uint32, revReg *RevocationRegistryPublic, revRegPriv *RevocationRegistryPrivate) (*ClaimSignature, error) {
	return SignClaimFromReader(rand.Reader, proverID, blindedMS, values, pub, priv, revIdx, revReg, revRegPriv)
}

// SignClaimFromReader is SignClaim with an injected randomness source.
func SignClaimFromReader(rng io.Reader, proverID string, blindedMS *BlindedMasterSecret, values *ClaimValues,
	pub *IssuerPublicKey, priv *IssuerPrivateKey,
	revIdx uint32, revReg *RevocationRegistryPublic, revRegPriv *RevocationRegistryPrivate) (*ClaimSignature, error) {

	if blindedMS == nil || values == nil || pub == nil || priv == nil {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "nil issuance input", 0)
	}
	p := pub.Primary
	if len(p.Attrs) != values.Len() {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "claim values do not match the key schema", 0)
	}
	for _, a := range p.Attrs {
		if values.Value(a) == nil {
			return nil, errors.WrapPrefix(ErrInvalidStructure, "claim values do not match the key schema", 0)
		}
	}
	if err := verifyBlindedMasterSecret(pub, blindedMS); err != nil {
		return nil, err
	}

	withRev := revIdx != 0
	if withRev {
		if pub.Revocation == nil {
			return nil, errors.WrapPrefix(ErrInvalidStructure, "issuer key has no revocation part", 0)
		}
		if revReg == nil || revRegPriv == nil {
			return nil, errors.WrapPrefix(ErrInvalidStructure, "revocation registry required", 0)
		}
		if blindedMS.Ur == nil {
			return nil, errors.WrapPrefix(ErrInvalidStructure, "blinded master secret has no revocation part", 0)
		}
		if revIdx > revReg.L {
			return nil, errors.WrapPrefix(ErrInvalidStructure, "revocation index exceeds registry capacity", 0)
		}
		if revReg.V[revIdx] {
			return nil, errors.WrapPrefix(ErrInvalidStructure, "revocation index already in use", 0)
		}
	}

	m2 := claimContext(proverID, revIdx)

	primary, err := signPrimaryClaim(rng, pub, priv, blindedMS.U, values, m2)
	if err != nil {
		return nil, err
	}

	sig := &ClaimSignature{Primary: primary, M2: m2}

	if withRev {
		nonRev, err := signNonRevocationClaim(rng, pub.Revocation, priv.Revocation,
			revReg, revRegPriv, blindedMS.Ur, m2, revIdx)
		if err != nil {
			return nil, err
		}
		sig.NonRevocation = nonRev
	}

	return sig, nil
}

// signPrimaryClaim computes the CL triple: picks v'' and a fresh prime e,
// then solves A = Q^(e^-1 mod p'q') mod n.
func signPrimaryClaim(rng io.Reader, pub *IssuerPublicKey, priv *IssuerPrivateKey,
	u *big.Int, values *ClaimValues, m2 *big.Int) (*PrimaryClaimSignature, error) {

	p := pub.Primary
	params := pub.Params

	// v'' is a full-width exponent with the top bit forced so the sum
	// v' + v'' always covers the scheme's range.
	vTail, err := common.RandomBigInt(rng, params.LV-1)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).Lsh(big.NewInt(1), params.LV-1)
	v.Add(v, vTail)
	common.Wipe(vTail)

	e, err := common.RandomPrimeInRange(rng, params.LE, params.LEPrime)
	if err != nil {
		return nil, err
	}

	// Q = Z / (U * S^v'' * RCtxt^m2 * prod R[a]^value[a]) mod n
	numerator := new(big.Int).Exp(p.S, v, p.N)
	numerator.Mul(numerator, u).Mod(numerator, p.N)
	numerator.Mul(numerator, new(big.Int).Exp(p.RCtxt, m2, p.N)).Mod(numerator, p.N)
	for _, a := range p.Attrs {
		numerator.Mul(numerator, new(big.Int).Exp(p.R[a], values.Value(a), p.N)).Mod(numerator, p.N)
	}
	invNumerator, ok := common.ModInverse(numerator, p.N)
	if !ok {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "issuance base is not invertible", 0)
	}
	q := new(big.Int).Mul(p.Z, invNumerator)
	q.Mod(q, p.N)

	order := priv.Primary.Order()
	d, ok := common.ModInverse(e, order)
	if !ok {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "signature exponent is not invertible", 0)
	}
	a := new(big.Int).Exp(q, d, p.N)
	common.WipeAll(d, order, q)

	return &PrimaryClaimSignature{A: a, E: e, V: v}, nil
}

// signNonRevocationClaim issues the CKS membership signature and witness
// for revIdx. Mutates the registry (index set, accumulator, epoch) last.
func signNonRevocationClaim(rng io.Reader, revPub *IssuerRevocationPublicKey, revPriv *IssuerRevocationPrivateKey,
	reg *RevocationRegistryPublic, regPriv *RevocationRegistryPrivate,
	ur *bls12381.G1Affine, m2 *big.Int, revIdx uint32) (*NonRevocationClaim, error) {

	m2q := new(big.Int).Mod(m2, GroupOrder)

	c, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}
	vrPrimePrime, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}

	// sigma = (h0 * h1^m2 * Ur * g_i * h2^vr'')^(1/(x + c))
	gi := reg.TailsG[revIdx]
	base := g1Add(&revPub.H0, ur)
	h1m2 := g1Mul(&revPub.H1, m2q)
	base = g1Add(&base, &h1m2)
	h2vr := g1Mul(&revPub.H2, vrPrimePrime)
	base = g1Add(&base, &h2vr)
	base = g1Add(&base, &gi)

	denom := new(big.Int).Add(revPriv.X, c)
	denomInv, ok := scalarInverse(denom)
	if !ok {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "degenerate membership exponent", 0)
	}
	sigma := g1Mul(&base, denomInv)
	common.WipeAll(denom, denomInv)

	witness, err := issueWitness(reg, regPriv, revPub, revPriv, revIdx)
	if err != nil {
		return nil, err
	}

	return &NonRevocationClaim{
		Sigma:   sigma,
		C:       c,
		Vr:      vrPrimePrime,
		Witness: witness,
		GI:      gi,
		I:       revIdx,
		M2:      m2q,
	}, nil
}
