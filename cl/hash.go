package cl

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
	"math/big"

	"github.com/kdenhartog/indy-crypto/internal/common"
)

// hashChallenge binds the concatenated transcript and the verifier's nonce
// into the aggregated Fiat-Shamir challenge c = SHA-256(transcript || nonce).
// The nonce is appended last, minimal big-endian, matching the canonical
// transcript layout.
func hashChallenge(transcript []byte, nonce *Nonce) *big.Int {
	h := sha256.New()
	h.Write(transcript)
	h.Write(nonce.Value.Bytes())
	return new(big.Int).SetBytes(h.Sum(nil))
}

// NewNonce samples a fresh verifier nonce, uniform in [0, 2^80).
func NewNonce() (*Nonce, error) {
	return NewNonceFromReader(rand.Reader)
}

// NewNonceFromReader is NewNonce with an injected randomness source.
func NewNonceFromReader(rng io.Reader) (*Nonce, error) {
	v, err := common.RandomBigInt(rng, DefaultParams.LNonce)
	if err != nil {
		return nil, err
	}
	return &Nonce{Value: v}, nil
}
