package cl

import (
	"errors"
	"math/big"
	"sync"
	"testing"
)

const proverID = "CnEDk9HrMnmiHXEV1WFgbVCRteYnPqsJwrTdcZaNhFVW"

func gvtSchema(t *testing.T) *ClaimSchema {
	t.Helper()
	b := NewClaimSchemaBuilder()
	for _, a := range []string{"name", "sex", "age", "height"} {
		if err := b.AddAttr(a); err != nil {
			t.Fatalf("AddAttr(%s): %v", a, err)
		}
	}
	schema, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return schema
}

func xyzSchema(t *testing.T) *ClaimSchema {
	t.Helper()
	b := NewClaimSchemaBuilder()
	for _, a := range []string{"status", "period"} {
		if err := b.AddAttr(a); err != nil {
			t.Fatalf("AddAttr(%s): %v", a, err)
		}
	}
	schema, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return schema
}

func gvtValues(t *testing.T) *ClaimValues {
	t.Helper()
	b := NewClaimValuesBuilder()
	pairs := map[string]string{
		"name":   "1139481716457488690172217916278103335",
		"sex":    "5944657099558967239210949258394887428692050081607692519917050011144233115103",
		"age":    "28",
		"height": "175",
	}
	for a, v := range pairs {
		if err := b.AddValue(a, v); err != nil {
			t.Fatalf("AddValue(%s): %v", a, err)
		}
	}
	values, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return values
}

func xyzValues(t *testing.T) *ClaimValues {
	t.Helper()
	b := NewClaimValuesBuilder()
	if err := b.AddValue("status", "51792877103171595686471452153480627530895"); err != nil {
		t.Fatalf("AddValue(status): %v", err)
	}
	if err := b.AddValue("period", "8"); err != nil {
		t.Fatalf("AddValue(period): %v", err)
	}
	values, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return values
}

func gvtSubProofRequest(t *testing.T) *SubProofRequest {
	t.Helper()
	b := NewSubProofRequestBuilder()
	if err := b.AddRevealedAttr("name"); err != nil {
		t.Fatalf("AddRevealedAttr: %v", err)
	}
	pred, err := NewPredicate("age", "GE", 18)
	if err != nil {
		t.Fatalf("NewPredicate: %v", err)
	}
	if err := b.AddPredicate(pred); err != nil {
		t.Fatalf("AddPredicate: %v", err)
	}
	req, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return req
}

func xyzSubProofRequest(t *testing.T) *SubProofRequest {
	t.Helper()
	b := NewSubProofRequestBuilder()
	if err := b.AddRevealedAttr("status"); err != nil {
		t.Fatalf("AddRevealedAttr: %v", err)
	}
	pred, err := NewPredicate("period", "GE", 4)
	if err != nil {
		t.Fatalf("NewPredicate: %v", err)
	}
	if err := b.AddPredicate(pred); err != nil {
		t.Fatalf("AddPredicate: %v", err)
	}
	req, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return req
}

// Key generation dominates test time, so keys are generated once and shared
// by all scenarios that do not mutate them.
var (
	gvtKeysOnce sync.Once
	gvtPub      *IssuerPublicKey
	gvtPriv     *IssuerPrivateKey
	gvtKeysErr  error

	xyzKeysOnce sync.Once
	xyzPub      *IssuerPublicKey
	xyzPriv     *IssuerPrivateKey
	xyzKeysErr  error

	revKeysOnce sync.Once
	revPub      *IssuerPublicKey
	revPriv     *IssuerPrivateKey
	revKeysErr  error
)

func gvtKeys(t *testing.T) (*IssuerPublicKey, *IssuerPrivateKey) {
	t.Helper()
	gvtKeysOnce.Do(func() {
		b := NewClaimSchemaBuilder()
		for _, a := range []string{"name", "sex", "age", "height"} {
			b.AddAttr(a)
		}
		schema, _ := b.Finalize()
		gvtPub, gvtPriv, gvtKeysErr = NewKeys(schema, false)
	})
	if gvtKeysErr != nil {
		t.Fatalf("NewKeys: %v", gvtKeysErr)
	}
	return gvtPub, gvtPriv
}

func xyzKeys(t *testing.T) (*IssuerPublicKey, *IssuerPrivateKey) {
	t.Helper()
	xyzKeysOnce.Do(func() {
		b := NewClaimSchemaBuilder()
		for _, a := range []string{"status", "period"} {
			b.AddAttr(a)
		}
		schema, _ := b.Finalize()
		xyzPub, xyzPriv, xyzKeysErr = NewKeys(schema, false)
	})
	if xyzKeysErr != nil {
		t.Fatalf("NewKeys: %v", xyzKeysErr)
	}
	return xyzPub, xyzPriv
}

func gvtRevocationKeys(t *testing.T) (*IssuerPublicKey, *IssuerPrivateKey) {
	t.Helper()
	revKeysOnce.Do(func() {
		b := NewClaimSchemaBuilder()
		for _, a := range []string{"name", "sex", "age", "height"} {
			b.AddAttr(a)
		}
		schema, _ := b.Finalize()
		revPub, revPriv, revKeysErr = NewKeys(schema, true)
	})
	if revKeysErr != nil {
		t.Fatalf("NewKeys: %v", revKeysErr)
	}
	return revPub, revPriv
}

// issueClaim walks the full issuance protocol for one credential.
func issueClaim(t *testing.T, pub *IssuerPublicKey, priv *IssuerPrivateKey, ms *MasterSecret,
	values *ClaimValues, revIdx uint32, revReg *RevocationRegistryPublic,
	revRegPriv *RevocationRegistryPrivate) *ClaimSignature {
	t.Helper()

	blindedMS, blindingData, err := BlindMasterSecret(pub, ms)
	if err != nil {
		t.Fatalf("BlindMasterSecret: %v", err)
	}
	sig, err := SignClaim(proverID, blindedMS, values, pub, priv, revIdx, revReg, revRegPriv)
	if err != nil {
		t.Fatalf("SignClaim: %v", err)
	}
	if err := ProcessClaimSignature(sig, blindingData, values, pub, revReg); err != nil {
		t.Fatalf("ProcessClaimSignature: %v", err)
	}
	return sig
}

func TestAnoncredsDemo(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtKeys(t)
	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	values := gvtValues(t)
	sig := issueClaim(t, pub, priv, ms, values, 0, nil, nil)

	req := gvtSubProofRequest(t)
	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}

	builder := NewProofBuilder()
	if err := builder.AddSubProofRequest("issuer_key_id_1", sig, values, pub, nil, req, schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	proof, err := builder.Finalize(nonce, ms)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	verifier := NewProofVerifier()
	if err := verifier.AddSubProofRequest("issuer_key_id_1", pub, nil, req, schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	ok, err := verifier.Verify(proof, nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("valid proof did not verify")
	}

	t.Run("tampered response", func(t *testing.T) {
		tampered := *proof
		eq := *proof.SubProofs[0].Primary.Eq
		eq.VHat = new(big.Int).Add(eq.VHat, big.NewInt(1))
		primary := *proof.SubProofs[0].Primary
		primary.Eq = &eq
		tampered.SubProofs = []*SubProof{{KeyID: "issuer_key_id_1", Primary: &primary}}

		verifier := NewProofVerifier()
		verifier.AddSubProofRequest("issuer_key_id_1", pub, nil, req, schema)
		ok, err := verifier.Verify(&tampered, nonce)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if ok {
			t.Fatal("tampered proof verified")
		}
	})

	t.Run("tampered revealed value", func(t *testing.T) {
		tampered := *proof
		eq := *proof.SubProofs[0].Primary.Eq
		eq.RevealedAttrs = map[string]*big.Int{"name": big.NewInt(42)}
		primary := *proof.SubProofs[0].Primary
		primary.Eq = &eq
		tampered.SubProofs = []*SubProof{{KeyID: "issuer_key_id_1", Primary: &primary}}

		verifier := NewProofVerifier()
		verifier.AddSubProofRequest("issuer_key_id_1", pub, nil, req, schema)
		ok, err := verifier.Verify(&tampered, nonce)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if ok {
			t.Fatal("proof with altered disclosure verified")
		}
	})

	t.Run("tampered challenge", func(t *testing.T) {
		tampered := *proof
		tampered.CHash = new(big.Int).Add(proof.CHash, big.NewInt(1))

		verifier := NewProofVerifier()
		verifier.AddSubProofRequest("issuer_key_id_1", pub, nil, req, schema)
		ok, err := verifier.Verify(&tampered, nonce)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if ok {
			t.Fatal("proof with altered challenge verified")
		}
	})

	t.Run("wrong nonce", func(t *testing.T) {
		other, err := NewNonce()
		if err != nil {
			t.Fatalf("NewNonce: %v", err)
		}
		if other.Value.Cmp(nonce.Value) == 0 {
			other.Value.Add(other.Value, big.NewInt(1))
		}
		verifier := NewProofVerifier()
		verifier.AddSubProofRequest("issuer_key_id_1", pub, nil, req, schema)
		ok, err := verifier.Verify(proof, other)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if ok {
			t.Fatal("proof verified under a different nonce")
		}
	})
}

func TestMultipleClaimsInOneProof(t *testing.T) {
	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}

	gvtS := gvtSchema(t)
	gvtP, gvtK := gvtKeys(t)
	gvtV := gvtValues(t)
	gvtSig := issueClaim(t, gvtP, gvtK, ms, gvtV, 0, nil, nil)

	xyzS := xyzSchema(t)
	xyzP, xyzK := xyzKeys(t)
	xyzV := xyzValues(t)
	xyzSig := issueClaim(t, xyzP, xyzK, ms, xyzV, 0, nil, nil)

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}

	builder := NewProofBuilder()
	if err := builder.AddSubProofRequest("gvt_key_id", gvtSig, gvtV, gvtP, nil, gvtSubProofRequest(t), gvtS); err != nil {
		t.Fatalf("AddSubProofRequest(gvt): %v", err)
	}
	if err := builder.AddSubProofRequest("xyz_key_id", xyzSig, xyzV, xyzP, nil, xyzSubProofRequest(t), xyzS); err != nil {
		t.Fatalf("AddSubProofRequest(xyz): %v", err)
	}
	proof, err := builder.Finalize(nonce, ms)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	verifier := NewProofVerifier()
	if err := verifier.AddSubProofRequest("gvt_key_id", gvtP, nil, gvtSubProofRequest(t), gvtS); err != nil {
		t.Fatalf("AddSubProofRequest(gvt): %v", err)
	}
	if err := verifier.AddSubProofRequest("xyz_key_id", xyzP, nil, xyzSubProofRequest(t), xyzS); err != nil {
		t.Fatalf("AddSubProofRequest(xyz): %v", err)
	}
	ok, err := verifier.Verify(proof, nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("combined proof did not verify")
	}
}

func TestRevocationProof(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtRevocationKeys(t)
	reg, regPriv, err := NewRevocationRegistry(pub, 5)
	if err != nil {
		t.Fatalf("NewRevocationRegistry: %v", err)
	}

	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	values := gvtValues(t)
	sig := issueClaim(t, pub, priv, ms, values, 1, reg, regPriv)

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	req := gvtSubProofRequest(t)

	builder := NewProofBuilder()
	if err := builder.AddSubProofRequest("key_id", sig, values, pub, reg, req, schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	proof, err := builder.Finalize(nonce, ms)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	verifier := NewProofVerifier()
	if err := verifier.AddSubProofRequest("key_id", pub, reg, req, schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	ok, err := verifier.Verify(proof, nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("proof with live witness did not verify")
	}
}

func TestProofCreatedBeforeClaimRevoked(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtRevocationKeys(t)
	reg, regPriv, err := NewRevocationRegistry(pub, 5)
	if err != nil {
		t.Fatalf("NewRevocationRegistry: %v", err)
	}

	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	values := gvtValues(t)
	sig := issueClaim(t, pub, priv, ms, values, 1, reg, regPriv)

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	req := gvtSubProofRequest(t)

	builder := NewProofBuilder()
	if err := builder.AddSubProofRequest("key_id", sig, values, pub, reg, req, schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	proof, err := builder.Finalize(nonce, ms)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if err := RevokeClaim(reg, 1); err != nil {
		t.Fatalf("RevokeClaim: %v", err)
	}

	verifier := NewProofVerifier()
	if err := verifier.AddSubProofRequest("key_id", pub, reg, req, schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	ok, err := verifier.Verify(proof, nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("proof for a revoked claim verified")
	}
}

func TestCreateProofAfterClaimRevoked(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtRevocationKeys(t)
	reg, regPriv, err := NewRevocationRegistry(pub, 5)
	if err != nil {
		t.Fatalf("NewRevocationRegistry: %v", err)
	}

	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	values := gvtValues(t)
	sig := issueClaim(t, pub, priv, ms, values, 1, reg, regPriv)

	if err := RevokeClaim(reg, 1); err != nil {
		t.Fatalf("RevokeClaim: %v", err)
	}

	builder := NewProofBuilder()
	err = builder.AddSubProofRequest("key_id", sig, values, pub, reg, gvtSubProofRequest(t), schema)
	if !errors.Is(err, ErrClaimRevoked) {
		t.Fatalf("AddSubProofRequest = %v, want ErrClaimRevoked", err)
	}
}

func TestReissueClaimAfterRevocation(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtRevocationKeys(t)
	reg, regPriv, err := NewRevocationRegistry(pub, 5)
	if err != nil {
		t.Fatalf("NewRevocationRegistry: %v", err)
	}

	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	values := gvtValues(t)
	issueClaim(t, pub, priv, ms, values, 1, reg, regPriv)

	if err := RevokeClaim(reg, 1); err != nil {
		t.Fatalf("RevokeClaim: %v", err)
	}

	// The index is free again, so a fresh claim may reuse it.
	newSig := issueClaim(t, pub, priv, ms, values, 1, reg, regPriv)

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	req := gvtSubProofRequest(t)

	builder := NewProofBuilder()
	if err := builder.AddSubProofRequest("key_id", newSig, values, pub, reg, req, schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	proof, err := builder.Finalize(nonce, ms)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	verifier := NewProofVerifier()
	if err := verifier.AddSubProofRequest("key_id", pub, reg, req, schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	ok, err := verifier.Verify(proof, nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("proof with reissued claim did not verify")
	}
}

func TestSignClaimWrongValuesForSchema(t *testing.T) {
	pub, priv := gvtKeys(t)
	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	blindedMS, _, err := BlindMasterSecret(pub, ms)
	if err != nil {
		t.Fatalf("BlindMasterSecret: %v", err)
	}

	_, err = SignClaim(proverID, blindedMS, xyzValues(t), pub, priv, 0, nil, nil)
	if !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("SignClaim = %v, want ErrInvalidStructure", err)
	}
}

func TestAddSubProofWrongValuesForClaim(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtKeys(t)
	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	sig := issueClaim(t, pub, priv, ms, gvtValues(t), 0, nil, nil)

	builder := NewProofBuilder()
	err = builder.AddSubProofRequest("key_id", sig, xyzValues(t), pub, nil, gvtSubProofRequest(t), schema)
	if !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("AddSubProofRequest = %v, want ErrInvalidStructure", err)
	}
}

func TestAddSubProofRequestNotMatchingClaim(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtKeys(t)
	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	values := gvtValues(t)
	sig := issueClaim(t, pub, priv, ms, values, 0, nil, nil)

	builder := NewProofBuilder()
	err = builder.AddSubProofRequest("key_id", sig, values, pub, nil, xyzSubProofRequest(t), schema)
	if !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("AddSubProofRequest = %v, want ErrInvalidStructure", err)
	}
}

func TestPredicateNotSatisfied(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtKeys(t)
	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	values := gvtValues(t)
	sig := issueClaim(t, pub, priv, ms, values, 0, nil, nil)

	b := NewSubProofRequestBuilder()
	b.AddRevealedAttr("name")
	pred, err := NewPredicate("age", "GE", 50)
	if err != nil {
		t.Fatalf("NewPredicate: %v", err)
	}
	b.AddPredicate(pred)
	req, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	builder := NewProofBuilder()
	err = builder.AddSubProofRequest("key_id", sig, values, pub, nil, req, schema)
	if !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("AddSubProofRequest = %v, want ErrInvalidStructure", err)
	}
}

func TestVerifierRequestMismatch(t *testing.T) {
	schema := gvtSchema(t)
	pub, priv := gvtKeys(t)
	ms, err := NewMasterSecret()
	if err != nil {
		t.Fatalf("NewMasterSecret: %v", err)
	}
	values := gvtValues(t)
	sig := issueClaim(t, pub, priv, ms, values, 0, nil, nil)

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}

	builder := NewProofBuilder()
	if err := builder.AddSubProofRequest("key_id", sig, values, pub, nil, gvtSubProofRequest(t), schema); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	proof, err := builder.Finalize(nonce, ms)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	xyzP, _ := xyzKeys(t)
	verifier := NewProofVerifier()
	if err := verifier.AddSubProofRequest("key_id", xyzP, nil, xyzSubProofRequest(t), xyzSchema(t)); err != nil {
		t.Fatalf("AddSubProofRequest: %v", err)
	}
	_, err = verifier.Verify(proof, nonce)
	if !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("Verify = %v, want ErrInvalidStructure", err)
	}
}
