// Package cl implements Camenisch-Lysyanskaya anonymous credentials over a
// strong-RSA group, with an optional CKS accumulator for revocation on the
// BLS12-381 pairing curve.
package cl

import (
	"errors"
	"math/big"
)

var (
	// ErrInvalidStructure is returned for malformed input, schema/values
	// mismatches, invalid predicates and failed issuance checks.
	ErrInvalidStructure = errors.New("invalid structure")

	// ErrClaimRevoked is returned when a proof is requested for a claim
	// whose revocation witness index has been revoked.
	ErrClaimRevoked = errors.New("claim revoked")
)

// Params holds the scheme's bit-length parameters. The values are
// interop-critical: transcripts produced under the same parameters are
// byte-identical across implementations.
type Params struct {
	LN      uint // RSA modulus bits
	LM      uint // attribute message bits
	LMS     uint // master secret bits
	LE      uint // signature exponent interval start (2^LE)
	LEPrime uint // signature exponent interval width (2^LEPrime)
	LV      uint // signature v bits
	LC      uint // challenge bits
	LNonce  uint // verifier nonce bits

	LVPrime     uint // prover blinding v' bits
	LETilde     uint // e randomizer bits
	LVTilde     uint // v randomizer bits
	LMTilde     uint // hidden-attribute randomizer bits
	LUTilde     uint // four-square randomizer bits
	LRTilde     uint // predicate r randomizer bits
	LAlphaTilde uint // predicate alpha randomizer bits

	IterSquares int // four-square terms per GE predicate
}

// DefaultParams is the production parameter set.
var DefaultParams = Params{
	LN:      2048,
	LM:      256,
	LMS:     256,
	LE:      596,
	LEPrime: 119,
	LV:      2724,
	LC:      256,
	LNonce:  80,

	LVPrime:     2128,
	LETilde:     456,
	LVTilde:     3060,
	LMTilde:     593,
	LUTilde:     592,
	LRTilde:     672,
	LAlphaTilde: 2787,

	IterSquares: 4,
}

// eOffset is the start of the prime interval for e; the proof system works
// with e' = e - eOffset so responses stay short.
func (p *Params) eOffset() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), p.LE)
}

// nByteLen is the canonical encoding width of integers modulo n.
func (p *Params) nByteLen() int {
	return int(p.LN+7) / 8
}
