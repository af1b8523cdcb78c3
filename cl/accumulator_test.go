package cl

import (
	"crypto/rand"
	"errors"
	"testing"
)

// revocationFixture builds a revocation key pair and registry without the
// expensive primary keygen.
func revocationFixture(t *testing.T, capacity uint32) (*IssuerPublicKey, *IssuerRevocationPrivateKey,
	*RevocationRegistryPublic, *RevocationRegistryPrivate) {
	t.Helper()

	revPub, revPriv, err := newRevocationKeys(rand.Reader)
	if err != nil {
		t.Fatalf("newRevocationKeys: %v", err)
	}
	pub := &IssuerPublicKey{Revocation: revPub, Params: &DefaultParams}
	reg, regPriv, err := NewRevocationRegistry(pub, capacity)
	if err != nil {
		t.Fatalf("NewRevocationRegistry: %v", err)
	}
	return pub, revPriv, reg, regPriv
}

func TestAccumulatorWitnessLifecycle(t *testing.T) {
	pub, revPriv, reg, regPriv := revocationFixture(t, 5)

	w1, err := issueWitness(reg, regPriv, pub.Revocation, revPriv, 1)
	if err != nil {
		t.Fatalf("issueWitness(1): %v", err)
	}
	if !reg.V[1] || reg.Epoch != 1 {
		t.Fatalf("registry state after issue: V=%v epoch=%d", reg.V, reg.Epoch)
	}
	ok, err := checkWitness(pub.Revocation, reg, w1)
	if err != nil {
		t.Fatalf("checkWitness: %v", err)
	}
	if !ok {
		t.Fatal("fresh witness does not satisfy the membership equation")
	}

	// A second issuance invalidates the stale witness until it is updated.
	w2, err := issueWitness(reg, regPriv, pub.Revocation, revPriv, 3)
	if err != nil {
		t.Fatalf("issueWitness(3): %v", err)
	}
	ok, err = checkWitness(pub.Revocation, reg, w1)
	if err != nil {
		t.Fatalf("checkWitness: %v", err)
	}
	if ok {
		t.Fatal("stale witness still satisfies the membership equation")
	}

	w1, err = UpdateWitness(reg, 1, w1)
	if err != nil {
		t.Fatalf("UpdateWitness: %v", err)
	}
	if w1.Epoch != reg.Epoch {
		t.Fatalf("witness epoch = %d, want %d", w1.Epoch, reg.Epoch)
	}
	ok, err = checkWitness(pub.Revocation, reg, w1)
	if err != nil {
		t.Fatalf("checkWitness: %v", err)
	}
	if !ok {
		t.Fatal("updated witness does not satisfy the membership equation")
	}

	// Revoking index 3 invalidates its witness and forces another replay
	// for index 1.
	if err := RevokeClaim(reg, 3); err != nil {
		t.Fatalf("RevokeClaim: %v", err)
	}
	ok, err = checkWitness(pub.Revocation, reg, w2)
	if err != nil {
		t.Fatalf("checkWitness: %v", err)
	}
	if ok {
		t.Fatal("witness for a revoked index still verifies")
	}

	w1, err = UpdateWitness(reg, 1, w1)
	if err != nil {
		t.Fatalf("UpdateWitness: %v", err)
	}
	ok, err = checkWitness(pub.Revocation, reg, w1)
	if err != nil {
		t.Fatalf("checkWitness: %v", err)
	}
	if !ok {
		t.Fatal("replayed witness does not satisfy the membership equation")
	}

	if _, err := UpdateWitness(reg, 3, w2); !errors.Is(err, ErrClaimRevoked) {
		t.Fatalf("UpdateWitness(revoked) = %v, want ErrClaimRevoked", err)
	}
}

func TestRevokeClaimUnknownIndex(t *testing.T) {
	_, _, reg, _ := revocationFixture(t, 5)
	if err := RevokeClaim(reg, 2); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("RevokeClaim(unknown) = %v, want ErrInvalidStructure", err)
	}
	if reg.Epoch != 0 {
		t.Fatalf("failed revocation mutated the registry: epoch=%d", reg.Epoch)
	}
}

func TestRegistryRequiresRevocationKey(t *testing.T) {
	pub := &IssuerPublicKey{Primary: &IssuerPrimaryPublicKey{}, Params: &DefaultParams}
	if _, _, err := NewRevocationRegistry(pub, 5); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("NewRevocationRegistry = %v, want ErrInvalidStructure", err)
	}
}

func TestAccumulatorValueTracksIndexSet(t *testing.T) {
	pub, revPriv, reg, regPriv := revocationFixture(t, 4)

	if _, err := issueWitness(reg, regPriv, pub.Revocation, revPriv, 2); err != nil {
		t.Fatalf("issueWitness: %v", err)
	}
	if _, err := issueWitness(reg, regPriv, pub.Revocation, revPriv, 4); err != nil {
		t.Fatalf("issueWitness: %v", err)
	}

	// acc must equal the sum of tails for the live indices.
	expected := g2Add(&reg.TailsG2[reg.L+1-2], &reg.TailsG2[reg.L+1-4])
	if !reg.Acc.Equal(&expected) {
		t.Fatal("accumulator does not match the live index set")
	}

	if err := RevokeClaim(reg, 2); err != nil {
		t.Fatalf("RevokeClaim: %v", err)
	}
	if !reg.Acc.Equal(&reg.TailsG2[reg.L+1-4]) {
		t.Fatal("accumulator does not match the live index set after revocation")
	}
}
