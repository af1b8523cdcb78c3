package cl

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/go-errors/errors"
)

// SubProof is the proof fragment for one credential.
type SubProof struct {
	KeyID         string
	Primary       *PrimarySubProof
	NonRevocation *NonRevocationProof
}

// Proof is a list of sub-proofs bound together by one aggregated
// Fiat-Shamir challenge.
type Proof struct {
	SubProofs []*SubProof
	CHash     *big.Int
}

// ProofBuilder drives the two-pass protocol: each AddSubProofRequest runs
// the commit phase of one credential's sub-proofs, Finalize derives the
// shared challenge and collects the responses.
type ProofBuilder struct {
	rng     io.Reader
	entries []*proofBuilderEntry
	done    bool
}

type proofBuilderEntry struct {
	keyID   string
	primary *primaryProofInit
	nonRev  *nonRevProofInit
}

// NewProofBuilder returns an empty proof builder.
func NewProofBuilder() *ProofBuilder {
	return &ProofBuilder{rng: rand.Reader}
}

// NewProofBuilderFromReader is NewProofBuilder with an injected randomness
// source.
func NewProofBuilderFromReader(rng io.Reader) *ProofBuilder {
	return &ProofBuilder{rng: rng}
}

// AddSubProofRequest validates one credential against a sub-proof request
// and runs the commit phase for it. Sub-proofs contribute to the challenge
// in insertion order.
func (b *ProofBuilder) AddSubProofRequest(keyID string, sig *ClaimSignature, values *ClaimValues,
	pub *IssuerPublicKey, revReg *RevocationRegistryPublic, req *SubProofRequest, schema *ClaimSchema) error {

	if b.done {
		return errors.WrapPrefix(ErrInvalidStructure, "proof builder already finalized", 0)
	}
	if sig == nil || sig.Primary == nil || values == nil || pub == nil || req == nil || schema == nil {
		return errors.WrapPrefix(ErrInvalidStructure, "nil sub-proof input", 0)
	}
	for _, e := range b.entries {
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
	if !schema.sameAttrs(values) {
		return errors.WrapPrefix(ErrInvalidStructure, "claim values do not match the schema", 0)
	}

	entry := &proofBuilderEntry{keyID: keyID}

	// Revocation gate: a key with a revocation part demands a live
	// witness before any commitment is made.
	if pub.Revocation != nil && revReg != nil {
		nr := sig.NonRevocation
		if nr == nil || nr.Witness == nil {
			return errors.WrapPrefix(ErrClaimRevoked, "credential carries no revocation witness", 0)
		}
		if !revReg.V[nr.I] {
			return errors.WrapPrefix(ErrClaimRevoked, "witness index has been revoked", 0)
		}
		witness := nr.Witness
		if witness.Epoch != revReg.Epoch {
			updated, err := UpdateWitness(revReg, nr.I, witness)
			if err != nil {
				return err
			}
			witness = updated
		}
		claim := *nr
		claim.Witness = witness
		nonRev, err := newNonRevProofInit(b.rng, pub.Revocation, revReg, &claim)
		if err != nil {
			return err
		}
		entry.nonRev = nonRev
	}

	var m2Tilde *big.Int
	if entry.nonRev != nil {
		m2Tilde = entry.nonRev.m2Tilde()
	}
	primary, err := newPrimaryProofInit(b.rng, sig, values, pub, req, m2Tilde)
	if err != nil {
		return err
	}
	entry.primary = primary

	b.entries = append(b.entries, entry)
	return nil
}

// Finalize derives the aggregated challenge over all committed sub-proofs
// and the verifier's nonce, then collects the responses.
func (b *ProofBuilder) Finalize(nonce *Nonce, ms *MasterSecret) (*Proof, error) {
	if b.done {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "proof builder already finalized", 0)
	}
	if nonce == nil || nonce.Value == nil || ms == nil || ms.MS == nil {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "nil finalize input", 0)
	}
	if len(b.entries) == 0 {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "no sub-proof requests added", 0)
	}
	b.done = true

	var transcript []byte
	for _, e := range b.entries {
		transcript = e.primary.appendCommitments(transcript)
		if e.nonRev != nil {
			transcript = e.nonRev.cList.appendTo(transcript)
		}
		transcript = e.primary.appendTauList(transcript)
		if e.nonRev != nil {
			transcript = e.nonRev.tauList.appendTo(transcript)
		}
		transcript = e.primary.appendRevealed(transcript)
	}
	cHash := hashChallenge(transcript, nonce)

	proof := &Proof{CHash: cHash}
	for _, e := range b.entries {
		sub := &SubProof{KeyID: e.keyID}
		sub.Primary = e.primary.respond(cHash, ms)
		if e.nonRev != nil {
			sub.NonRevocation = e.nonRev.respond(cHash)
		}
		proof.SubProofs = append(proof.SubProofs, sub)
	}
	return proof, nil
}

// checkRequestAgainstSchema validates that everything the request names
// exists in the schema and that no predicate targets a revealed attribute.
func checkRequestAgainstSchema(req *SubProofRequest, schema *ClaimSchema) error {
	revealed := make(map[string]bool)
	for _, a := range req.RevealedAttrs() {
		if !schema.Contains(a) {
			return errors.WrapPrefix(ErrInvalidStructure, "revealed attribute "+a+" not in schema", 0)
		}
		revealed[a] = true
	}
	for _, p := range req.Predicates() {
		if !schema.Contains(p.Attr) {
			return errors.WrapPrefix(ErrInvalidStructure, "predicate attribute "+p.Attr+" not in schema", 0)
		}
		if revealed[p.Attr] {
			return errors.WrapPrefix(ErrInvalidStructure, "predicate on revealed attribute "+p.Attr, 0)
		}
	}
	return nil
}

// schemaMatchesKey reports whether the key was generated for exactly this
// schema.
func schemaMatchesKey(schema *ClaimSchema, pub *IssuerPublicKey) bool {
	attrs := schema.Attrs()
	if len(attrs) != len(pub.Primary.Attrs) {
		return false
	}
	for i, a := range pub.Primary.Attrs {
		if attrs[i] != a {
			return false
		}
	}
	return true
}
