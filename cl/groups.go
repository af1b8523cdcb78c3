package cl

import (
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/kdenhartog/indy-crypto/internal/common"
)

// randomScalar generates a uniform scalar modulo the group order.
func randomScalar(rng io.Reader) (*big.Int, error) {
	return common.RandomInRange(rng, GroupOrder)
}

// randomG1 samples a uniform element of G1 as a random multiple of the
// generator.
func randomG1(rng io.Reader) (bls12381.G1Affine, error) {
	s, err := randomScalar(rng)
	if err != nil {
		return bls12381.G1Affine{}, err
	}
	_, _, g1, _ := bls12381.Generators()
	return g1Mul(&g1, s), nil
}

// randomG2 samples a uniform element of G2.
func randomG2(rng io.Reader) (bls12381.G2Affine, error) {
	s, err := randomScalar(rng)
	if err != nil {
		return bls12381.G2Affine{}, err
	}
	_, _, _, g2 := bls12381.Generators()
	return g2Mul(&g2, s), nil
}

func g1Mul(p *bls12381.G1Affine, s *big.Int) bls12381.G1Affine {
	var jac bls12381.G1Jac
	jac.FromAffine(p)
	jac.ScalarMultiplication(&jac, s)
	var out bls12381.G1Affine
	out.FromJacobian(&jac)
	return out
}

func g2Mul(p *bls12381.G2Affine, s *big.Int) bls12381.G2Affine {
	var jac bls12381.G2Jac
	jac.FromAffine(p)
	jac.ScalarMultiplication(&jac, s)
	var out bls12381.G2Affine
	out.FromJacobian(&jac)
	return out
}

func g1Add(a, b *bls12381.G1Affine) bls12381.G1Affine {
	var jac, other bls12381.G1Jac
	jac.FromAffine(a)
	other.FromAffine(b)
	jac.AddAssign(&other)
	var out bls12381.G1Affine
	out.FromJacobian(&jac)
	return out
}

func g2Add(a, b *bls12381.G2Affine) bls12381.G2Affine {
	var jac, other bls12381.G2Jac
	jac.FromAffine(a)
	other.FromAffine(b)
	jac.AddAssign(&other)
	var out bls12381.G2Affine
	out.FromJacobian(&jac)
	return out
}

func g2Sub(a, b *bls12381.G2Affine) bls12381.G2Affine {
	neg := g2Neg(b)
	return g2Add(a, &neg)
}

func g2Neg(p *bls12381.G2Affine) bls12381.G2Affine {
	var out bls12381.G2Affine
	out.Neg(p)
	return out
}

// pair computes e(a, b) as a single-pair Miller loop plus final
// exponentiation.
func pair(a *bls12381.G1Affine, b *bls12381.G2Affine) (bls12381.GT, error) {
	return bls12381.Pair([]bls12381.G1Affine{*a}, []bls12381.G2Affine{*b})
}

func gtMul(a, b *bls12381.GT) bls12381.GT {
	var out bls12381.GT
	out.Mul(a, b)
	return out
}

func gtInverse(a *bls12381.GT) bls12381.GT {
	var out bls12381.GT
	out.Inverse(a)
	return out
}

// gtExp raises a GT element to a possibly negative scalar.
func gtExp(a *bls12381.GT, s *big.Int) bls12381.GT {
	var out bls12381.GT
	if s.Sign() < 0 {
		inv := gtInverse(a)
		out.Exp(inv, new(big.Int).Neg(s))
		return out
	}
	out.Exp(*a, s)
	return out
}

// negScalar returns -s modulo the group order.
func negScalar(s *big.Int) *big.Int {
	out := new(big.Int).Mod(s, GroupOrder)
	if out.Sign() != 0 {
		out.Sub(GroupOrder, out)
	}
	return out
}

// scalarMulAdd returns (a + b*c) mod the group order.
func scalarMulAdd(a, b, c *big.Int) *big.Int {
	out := new(big.Int).Mul(b, c)
	out.Add(out, a)
	return out.Mod(out, GroupOrder)
}

// scalarInverse returns s^-1 mod the group order, and whether it exists.
func scalarInverse(s *big.Int) (*big.Int, bool) {
	return common.ModInverse(new(big.Int).Mod(s, GroupOrder), GroupOrder)
}
