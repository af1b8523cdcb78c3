package cl

import (
	"math/big"

	"github.com/go-errors/errors"
)

// ProofVerifier reruns the public side of every sub-proof in insertion
// order and checks the aggregated challenge.
type ProofVerifier struct {
	entries []*verifierEntry
	done    bool
}

type verifierEntry struct {
	keyID  string
	pub    *IssuerPublicKey
	revReg *RevocationRegistryPublic
	req    *SubProofRequest
	schema *ClaimSchema
}

// NewProofVerifier returns an empty proof verifier.
func NewProofVerifier() *ProofVerifier {
	return &ProofVerifier{}
}

// AddSubProofRequest registers the public context for one expected
// sub-proof. Insertion order must match the prover's.
func (v *ProofVerifier) AddSubProofRequest(keyID string, pub *IssuerPublicKey,
	revReg *RevocationRegistryPublic, req *SubProofRequest, schema *ClaimSchema) error {

	if v.done {
		return errors.WrapPrefix(ErrInvalidStructure, "proof verifier already used", 0)
	}
	if pub == nil || req == nil || schema == nil {
		return errors.WrapPrefix(ErrInvalidStructure, "nil sub-proof input", 0)
	}
	for _, e := range v.entries {
		if e.keyID == keyID {
			return errors.WrapPrefix(ErrInvalidStructure, "duplicate key id "+keyID, 0)
		}
	}
	if err := checkRequestAgainstSchema(req, schema); err != nil {
		return err
	}
	if !schemaMatchesKey(schema, pub) {
		return errors.WrapPrefix(ErrInvalidStructure, "schema does not match the issuer key", 0)
	}
	v.entries = append(v.entries, &verifierEntry{
		keyID:  keyID,
		pub:    pub,
		revReg: revReg,
		req:    req,
		schema: schema,
	})
	return nil
}

// Verify recomputes the aggregated challenge from the proof's responses and
// compares it with the proof's. Cryptographic disagreement yields
// (false, nil); structural mismatches between the proof and the registered
// requests are ErrInvalidStructure.
func (v *ProofVerifier) Verify(proof *Proof, nonce *Nonce) (bool, error) {
	if v.done {
		return false, errors.WrapPrefix(ErrInvalidStructure, "proof verifier already used", 0)
	}
	v.done = true
	if proof == nil || proof.CHash == nil || nonce == nil || nonce.Value == nil {
		return false, errors.WrapPrefix(ErrInvalidStructure, "nil verification input", 0)
	}
	if len(proof.SubProofs) != len(v.entries) {
		return false, errors.WrapPrefix(ErrInvalidStructure, "sub-proof count mismatch", 0)
	}

	var transcript []byte
	for i, e := range v.entries {
		sub := proof.SubProofs[i]
		if sub == nil || sub.Primary == nil || sub.Primary.Eq == nil {
			return false, errors.WrapPrefix(ErrInvalidStructure, "incomplete sub-proof", 0)
		}
		if sub.KeyID != e.keyID {
			return false, errors.WrapPrefix(ErrInvalidStructure, "sub-proof key id mismatch", 0)
		}

		var commitBuf, tauBuf []byte
		var ok bool
		var err error
		commitBuf, tauBuf, ok, err = verifyPrimarySubProof(e.pub, e.req, sub.Primary, proof.CHash, commitBuf, tauBuf)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}

		if e.pub.Revocation != nil && e.revReg != nil {
			if sub.NonRevocation == nil {
				return false, errors.WrapPrefix(ErrInvalidStructure, "missing non-revocation sub-proof", 0)
			}
			commitBuf, tauBuf, ok, err = verifyNonRevSubProof(e.pub.Revocation, e.revReg, sub.NonRevocation, proof.CHash, commitBuf, tauBuf)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}

		transcript = append(transcript, commitBuf...)
		transcript = append(transcript, tauBuf...)
		transcript = appendRevealedValues(transcript, e.pub, sub.Primary.Eq.RevealedAttrs)
	}

	recomputed := hashChallenge(transcript, nonce)
	return recomputed.Cmp(proof.CHash) == 0, nil
}

// appendRevealedValues appends the disclosed values in schema order, the
// same layout the prover used.
func appendRevealedValues(buf []byte, pub *IssuerPublicKey, revealed map[string]*big.Int) []byte {
	for _, a := range pub.Primary.Attrs {
		if v, ok := revealed[a]; ok {
			buf = append(buf, v.Bytes()...)
		}
	}
	return buf
}
