package cl

import (
	"errors"
	"testing"
)

func TestClaimSchemaBuilder(t *testing.T) {
	b := NewClaimSchemaBuilder()
	if err := b.AddAttr("name"); err != nil {
		t.Fatalf("AddAttr: %v", err)
	}
	if err := b.AddAttr("age"); err != nil {
		t.Fatalf("AddAttr: %v", err)
	}
	if err := b.AddAttr("name"); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("duplicate AddAttr = %v, want ErrInvalidStructure", err)
	}

	schema, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got := schema.Attrs(); len(got) != 2 || got[0] != "name" || got[1] != "age" {
		t.Fatalf("Attrs = %v, want [name age]", got)
	}

	if err := b.AddAttr("height"); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("AddAttr after Finalize = %v, want ErrInvalidStructure", err)
	}
	if _, err := b.Finalize(); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("double Finalize = %v, want ErrInvalidStructure", err)
	}
}

func TestClaimValuesBuilder(t *testing.T) {
	b := NewClaimValuesBuilder()
	if err := b.AddValue("age", "28"); err != nil {
		t.Fatalf("AddValue: %v", err)
	}
	if err := b.AddValue("age", "29"); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("duplicate AddValue = %v, want ErrInvalidStructure", err)
	}
	if err := b.AddValue("height", "not a number"); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("non-numeric AddValue = %v, want ErrInvalidStructure", err)
	}
	if err := b.AddValue("height", "-5"); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("negative AddValue = %v, want ErrInvalidStructure", err)
	}

	values, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if values.Value("age").Int64() != 28 {
		t.Fatalf("Value(age) = %v, want 28", values.Value("age"))
	}
	if values.Value("height") != nil {
		t.Fatal("rejected value was stored")
	}
	if _, err := b.Finalize(); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("double Finalize = %v, want ErrInvalidStructure", err)
	}
}

func TestPredicateValidation(t *testing.T) {
	if _, err := NewPredicate("age", "GE", 18); err != nil {
		t.Fatalf("NewPredicate(GE): %v", err)
	}
	if _, err := NewPredicate("age", "LT", 18); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("NewPredicate(LT) = %v, want ErrInvalidStructure", err)
	}
	if _, err := NewPredicate("", "GE", 18); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("NewPredicate(empty attr) = %v, want ErrInvalidStructure", err)
	}
}

func TestSubProofRequestBuilder(t *testing.T) {
	b := NewSubProofRequestBuilder()
	if err := b.AddRevealedAttr("name"); err != nil {
		t.Fatalf("AddRevealedAttr: %v", err)
	}
	if err := b.AddRevealedAttr("name"); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("duplicate AddRevealedAttr = %v, want ErrInvalidStructure", err)
	}
	pred, _ := NewPredicate("age", "GE", 18)
	if err := b.AddPredicate(pred); err != nil {
		t.Fatalf("AddPredicate: %v", err)
	}
	req, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got := req.RevealedAttrs(); len(got) != 1 || got[0] != "name" {
		t.Fatalf("RevealedAttrs = %v, want [name]", got)
	}
	if got := req.Predicates(); len(got) != 1 || got[0].Attr != "age" {
		t.Fatalf("Predicates = %v", got)
	}
	if err := b.AddRevealedAttr("sex"); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("AddRevealedAttr after Finalize = %v, want ErrInvalidStructure", err)
	}
}

func TestNewKeysEmptySchema(t *testing.T) {
	b := NewClaimSchemaBuilder()
	schema, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, _, err := NewKeys(schema, false); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("NewKeys(empty schema) = %v, want ErrInvalidStructure", err)
	}
}
