package cl

import (
	"math/big"

	"github.com/go-errors/errors"
)

// ClaimSchema is an ordered, de-duplicated set of attribute names. It is
// immutable once finalized.
type ClaimSchema struct {
	attrs []string
}

// Attrs returns the attribute names in schema order.
func (s *ClaimSchema) Attrs() []string {
	out := make([]string, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Len returns the number of attributes.
func (s *ClaimSchema) Len() int { return len(s.attrs) }

// Contains reports whether name is part of the schema.
func (s *ClaimSchema) Contains(name string) bool {
	for _, a := range s.attrs {
		if a == name {
			return true
		}
	}
	return false
}

// sameAttrs reports whether the schema's attribute set equals the key set
// of values, ignoring order.
func (s *ClaimSchema) sameAttrs(v *ClaimValues) bool {
	if len(s.attrs) != len(v.values) {
		return false
	}
	for _, a := range s.attrs {
		if _, ok := v.values[a]; !ok {
			return false
		}
	}
	return true
}

// ClaimSchemaBuilder accumulates attribute names. Finalize consumes the
// builder; any use afterwards fails.
type ClaimSchemaBuilder struct {
	attrs []string
	done  bool
}

// NewClaimSchemaBuilder returns an empty schema builder.
func NewClaimSchemaBuilder() *ClaimSchemaBuilder {
	return &ClaimSchemaBuilder{}
}

// AddAttr appends an attribute name. Duplicates are rejected.
func (b *ClaimSchemaBuilder) AddAttr(name string) error {
	if b.done {
		return errors.WrapPrefix(ErrInvalidStructure, "schema builder already finalized", 0)
	}
	if name == "" {
		return errors.WrapPrefix(ErrInvalidStructure, "empty attribute name", 0)
	}
	for _, a := range b.attrs {
		if a == name {
			return errors.WrapPrefix(ErrInvalidStructure, "duplicate attribute "+name, 0)
		}
	}
	b.attrs = append(b.attrs, name)
	return nil
}

// Finalize freezes the builder and returns the immutable schema.
func (b *ClaimSchemaBuilder) Finalize() (*ClaimSchema, error) {
	if b.done {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "schema builder already finalized", 0)
	}
	b.done = true
	attrs := make([]string, len(b.attrs))
	copy(attrs, b.attrs)
	return &ClaimSchema{attrs: attrs}, nil
}

// ClaimValues maps attribute names to integer-encoded values.
type ClaimValues struct {
	values map[string]*big.Int
}

// Value returns the value for name, or nil when absent.
func (v *ClaimValues) Value(name string) *big.Int {
	return v.values[name]
}

// Len returns the number of values.
func (v *ClaimValues) Len() int { return len(v.values) }

// ClaimValuesBuilder accumulates attribute values parsed from decimal
// strings. Finalize consumes the builder.
type ClaimValuesBuilder struct {
	values map[string]*big.Int
	done   bool
}

// NewClaimValuesBuilder returns an empty values builder.
func NewClaimValuesBuilder() *ClaimValuesBuilder {
	return &ClaimValuesBuilder{values: make(map[string]*big.Int)}
}

// AddValue parses dec as a non-negative decimal integer and records it
// under name. Non-numeric input, duplicates and out-of-range values are
// rejected.
func (b *ClaimValuesBuilder) AddValue(name, dec string) error {
	if b.done {
		return errors.WrapPrefix(ErrInvalidStructure, "values builder already finalized", 0)
	}
	if name == "" {
		return errors.WrapPrefix(ErrInvalidStructure, "empty attribute name", 0)
	}
	if _, ok := b.values[name]; ok {
		return errors.WrapPrefix(ErrInvalidStructure, "duplicate value for "+name, 0)
	}
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok || v.Sign() < 0 {
		return errors.WrapPrefix(ErrInvalidStructure, "value for "+name+" is not a non-negative decimal", 0)
	}
	if v.BitLen() > int(DefaultParams.LN) {
		return errors.WrapPrefix(ErrInvalidStructure, "value for "+name+" exceeds the message bound", 0)
	}
	b.values[name] = v
	return nil
}

// Finalize freezes the builder and returns the immutable values.
func (b *ClaimValuesBuilder) Finalize() (*ClaimValues, error) {
	if b.done {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "values builder already finalized", 0)
	}
	b.done = true
	values := make(map[string]*big.Int, len(b.values))
	for k, v := range b.values {
		values[k] = new(big.Int).Set(v)
	}
	return &ClaimValues{values: values}, nil
}

// PredicateType enumerates the supported predicate operators.
type PredicateType string

// GE asserts attribute >= threshold.
const GE PredicateType = "GE"

// Predicate is an inequality assertion over one attribute.
type Predicate struct {
	Attr      string
	PType     PredicateType
	Threshold int64
}

// NewPredicate validates the operator and builds a predicate.
func NewPredicate(attr, ptype string, threshold int64) (*Predicate, error) {
	if PredicateType(ptype) != GE {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "unsupported predicate type "+ptype, 0)
	}
	if attr == "" {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "empty predicate attribute", 0)
	}
	return &Predicate{Attr: attr, PType: GE, Threshold: threshold}, nil
}

// SubProofRequest is an ordered set of revealed attribute names plus
// predicates, as assembled by the verifier.
type SubProofRequest struct {
	revealedAttrs []string
	predicates    []*Predicate
}

// RevealedAttrs returns the revealed attribute names in insertion order.
func (r *SubProofRequest) RevealedAttrs() []string {
	out := make([]string, len(r.revealedAttrs))
	copy(out, r.revealedAttrs)
	return out
}

// Predicates returns the predicates in insertion order.
func (r *SubProofRequest) Predicates() []*Predicate {
	out := make([]*Predicate, len(r.predicates))
	copy(out, r.predicates)
	return out
}

// SubProofRequestBuilder accumulates a sub-proof request. Finalize consumes
// the builder.
type SubProofRequestBuilder struct {
	req  SubProofRequest
	done bool
}

// NewSubProofRequestBuilder returns an empty request builder.
func NewSubProofRequestBuilder() *SubProofRequestBuilder {
	return &SubProofRequestBuilder{}
}

// AddRevealedAttr marks an attribute for disclosure.
func (b *SubProofRequestBuilder) AddRevealedAttr(name string) error {
	if b.done {
		return errors.WrapPrefix(ErrInvalidStructure, "request builder already finalized", 0)
	}
	for _, a := range b.req.revealedAttrs {
		if a == name {
			return errors.WrapPrefix(ErrInvalidStructure, "duplicate revealed attribute "+name, 0)
		}
	}
	b.req.revealedAttrs = append(b.req.revealedAttrs, name)
	return nil
}

// AddPredicate appends a predicate.
func (b *SubProofRequestBuilder) AddPredicate(p *Predicate) error {
	if b.done {
		return errors.WrapPrefix(ErrInvalidStructure, "request builder already finalized", 0)
	}
	if p == nil {
		return errors.WrapPrefix(ErrInvalidStructure, "nil predicate", 0)
	}
	b.req.predicates = append(b.req.predicates, p)
	return nil
}

// Finalize freezes the builder and returns the immutable request.
func (b *SubProofRequestBuilder) Finalize() (*SubProofRequest, error) {
	if b.done {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "request builder already finalized", 0)
	}
	b.done = true
	req := SubProofRequest{
		revealedAttrs: append([]string(nil), b.req.revealedAttrs...),
		predicates:    append([]*Predicate(nil), b.req.predicates...),
	}
	return &req, nil
}

// Nonce is a verifier-chosen freshness value, uniform in [0, 2^80).
type Nonce struct {
	Value *big.Int
}
