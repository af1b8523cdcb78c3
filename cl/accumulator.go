package cl

import (
	"crypto/rand"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/go-errors/errors"

	"github.com/kdenhartog/indy-crypto/internal/common"
)

// RevocationRegistryPublic is the public accumulator state. Acc is the
// product of the G2 tails for all currently valid indices:
//
//	Acc = sum_{j in V} GDash^(gamma^(L+1-j))
//
// Every mutation bumps Epoch so witnesses know what to replay.
type RevocationRegistryPublic struct {
	Acc     bls12381.G2Affine
	Z       bls12381.GT // e(G, GDash)^(gamma^(L+1))
	TailsG  []bls12381.G1Affine
	TailsG2 []bls12381.G2Affine
	V       map[uint32]bool
	L       uint32
	Epoch   uint64
}

// RevocationRegistryPrivate holds the accumulator trapdoor.
type RevocationRegistryPrivate struct {
	Gamma *big.Int
}

// Zeroize wipes the trapdoor.
func (r *RevocationRegistryPrivate) Zeroize() {
	common.Wipe(r.Gamma)
}

// Witness proves that a specific index is in the accumulator.
type Witness struct {
	SigmaI bls12381.G2Affine // GDash^(1/(sk + gamma^i))
	UI     bls12381.G2Affine // U^(gamma^i)
	GI     bls12381.G1Affine
	Omega  bls12381.G2Affine
	V      map[uint32]bool
	Epoch  uint64
}

func copyIndexSet(v map[uint32]bool) map[uint32]bool {
	out := make(map[uint32]bool, len(v))
	for k := range v {
		out[k] = true
	}
	return out
}

// NewRevocationRegistry creates an empty accumulator of capacity maxClaims
// for an issuer key that carries a revocation part.
func NewRevocationRegistry(pub *IssuerPublicKey, maxClaims uint32) (*RevocationRegistryPublic, *RevocationRegistryPrivate, error) {
	return NewRevocationRegistryFromReader(rand.Reader, pub, maxClaims)
}

// NewRevocationRegistryFromReader is NewRevocationRegistry with an injected
// randomness source.
func NewRevocationRegistryFromReader(rng io.Reader, pub *IssuerPublicKey, maxClaims uint32) (*RevocationRegistryPublic, *RevocationRegistryPrivate, error) {
	if pub == nil || pub.Revocation == nil {
		return nil, nil, errors.WrapPrefix(ErrInvalidStructure, "issuer key has no revocation part", 0)
	}
	if maxClaims == 0 {
		return nil, nil, errors.WrapPrefix(ErrInvalidStructure, "registry capacity must be positive", 0)
	}

	gamma, err := randomScalar(rng)
	if err != nil {
		return nil, nil, err
	}

	l := maxClaims
	rev := pub.Revocation

	// Tails g^(gamma^j) for j in [1, 2L], with entry L+1 never published.
	tailsG := make([]bls12381.G1Affine, 2*l+2)
	tailsG2 := make([]bls12381.G2Affine, 2*l+2)
	gammaPow := big.NewInt(1)
	var zPair bls12381.GT
	for j := uint32(1); j <= 2*l; j++ {
		gammaPow = new(big.Int).Mod(new(big.Int).Mul(gammaPow, gamma), GroupOrder)
		if j == l+1 {
			base, err := pair(&rev.G, &rev.GDash)
			if err != nil {
				return nil, nil, err
			}
			zPair = gtExp(&base, gammaPow)
			continue
		}
		tailsG[j] = g1Mul(&rev.G, gammaPow)
		tailsG2[j] = g2Mul(&rev.GDash, gammaPow)
	}

	reg := &RevocationRegistryPublic{
		Z:       zPair,
		TailsG:  tailsG,
		TailsG2: tailsG2,
		V:       make(map[uint32]bool),
		L:       l,
	}
	// Acc starts at the identity; gnark's zero-value affine point is the
	// point at infinity.
	return reg, &RevocationRegistryPrivate{Gamma: gamma}, nil
}

// issueWitness registers idx in the accumulator and produces its witness.
// The caller has already validated the index.
func issueWitness(reg *RevocationRegistryPublic, regPriv *RevocationRegistryPrivate,
	revPub *IssuerRevocationPublicKey, revPriv *IssuerRevocationPrivateKey, idx uint32) (*Witness, error) {

	gammaI := new(big.Int).Exp(regPriv.Gamma, new(big.Int).SetUint64(uint64(idx)), GroupOrder)

	denom := new(big.Int).Add(revPriv.SK, gammaI)
	denomInv, ok := scalarInverse(denom)
	if !ok {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "degenerate accumulator index", 0)
	}
	sigmaI := g2Mul(&revPub.GDash, denomInv)
	uI := g2Mul(&revPub.U, gammaI)

	omega := omegaFor(reg, reg.V, idx)

	reg.V[idx] = true
	tail := reg.TailsG2[reg.L+1-idx]
	reg.Acc = g2Add(&reg.Acc, &tail)
	reg.Epoch++

	return &Witness{
		SigmaI: sigmaI,
		UI:     uI,
		GI:     reg.TailsG[idx],
		Omega:  omega,
		V:      copyIndexSet(reg.V),
		Epoch:  reg.Epoch,
	}, nil
}

// omegaFor computes sum_{j in v, j != idx} GDash^(gamma^(L+1-j+idx)) from
// the published tails.
func omegaFor(reg *RevocationRegistryPublic, v map[uint32]bool, idx uint32) bls12381.G2Affine {
	var omega bls12381.G2Affine
	for j := range v {
		if j == idx {
			continue
		}
		tail := reg.TailsG2[reg.L+1-j+idx]
		omega = g2Add(&omega, &tail)
	}
	return omega
}

// RevokeClaim removes idx from the registry. The operation is
// all-or-nothing: on failure the registry is untouched.
func RevokeClaim(reg *RevocationRegistryPublic, idx uint32) error {
	if reg == nil {
		return errors.WrapPrefix(ErrInvalidStructure, "nil revocation registry", 0)
	}
	if !reg.V[idx] {
		return errors.WrapPrefix(ErrInvalidStructure, "index is not registered", 0)
	}
	delete(reg.V, idx)
	tail := reg.TailsG2[reg.L+1-idx]
	reg.Acc = g2Sub(&reg.Acc, &tail)
	reg.Epoch++
	return nil
}

// UpdateWitness replays the revocations and issuances that happened since
// the witness' epoch, following the CKS update rule. The input witness is
// not modified.
func UpdateWitness(reg *RevocationRegistryPublic, idx uint32, old *Witness) (*Witness, error) {
	if reg == nil || old == nil {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "nil registry or witness", 0)
	}
	if !reg.V[idx] {
		return nil, errors.WrapPrefix(ErrClaimRevoked, "index has been revoked", 0)
	}

	out := &Witness{
		SigmaI: old.SigmaI,
		UI:     old.UI,
		GI:     old.GI,
		Omega:  old.Omega,
		V:      copyIndexSet(old.V),
		Epoch:  reg.Epoch,
	}
	if old.Epoch == reg.Epoch {
		return out, nil
	}

	for j := range reg.V {
		if j == idx || old.V[j] {
			continue
		}
		tail := reg.TailsG2[reg.L+1-j+idx]
		out.Omega = g2Add(&out.Omega, &tail)
		out.V[j] = true
	}
	for j := range old.V {
		if j == idx || reg.V[j] {
			continue
		}
		tail := reg.TailsG2[reg.L+1-j+idx]
		out.Omega = g2Sub(&out.Omega, &tail)
		delete(out.V, j)
	}
	return out, nil
}

// checkWitness verifies the accumulator membership equation
// e(GI, Acc) == e(G, Omega) * Z for the witness' index.
func checkWitness(revPub *IssuerRevocationPublicKey, reg *RevocationRegistryPublic, w *Witness) (bool, error) {
	lhs, err := pair(&w.GI, &reg.Acc)
	if err != nil {
		return false, err
	}
	rhs, err := pair(&revPub.G, &w.Omega)
	if err != nil {
		return false, err
	}
	rhs = gtMul(&rhs, &reg.Z)
	return lhs.Equal(&rhs), nil
}
