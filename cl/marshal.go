package cl

import (
	"encoding/binary"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/go-errors/errors"
)

const (
	g1Len = bls12381.SizeOfG1AffineUncompressed
	g2Len = bls12381.SizeOfG2AffineUncompressed
)

// appendBigInt appends a 4-byte big-endian length prefix followed by the
// minimal big-endian encoding.
func appendBigInt(buf []byte, x *big.Int) []byte {
	b := x.Bytes()
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	buf = append(buf, l[:]...)
	return append(buf, b...)
}

func readBigInt(data []byte, offset int) (*big.Int, int, error) {
	if offset+4 > len(data) {
		return nil, 0, errors.WrapPrefix(ErrInvalidStructure, "truncated integer length", 0)
	}
	l := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+l > len(data) {
		return nil, 0, errors.WrapPrefix(ErrInvalidStructure, "truncated integer", 0)
	}
	x := new(big.Int).SetBytes(data[offset : offset+l])
	return x, offset + l, nil
}

func appendString(buf []byte, s string) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(s)))
	buf = append(buf, l[:]...)
	return append(buf, []byte(s)...)
}

func readString(data []byte, offset int) (string, int, error) {
	if offset+4 > len(data) {
		return "", 0, errors.WrapPrefix(ErrInvalidStructure, "truncated string length", 0)
	}
	l := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+l > len(data) {
		return "", 0, errors.WrapPrefix(ErrInvalidStructure, "truncated string", 0)
	}
	return string(data[offset : offset+l]), offset + l, nil
}

func readG1(data []byte, offset int) (bls12381.G1Affine, int, error) {
	var p bls12381.G1Affine
	if offset+g1Len > len(data) {
		return p, 0, errors.WrapPrefix(ErrInvalidStructure, "truncated G1 point", 0)
	}
	if err := p.Unmarshal(data[offset : offset+g1Len]); err != nil {
		return p, 0, errors.WrapPrefix(ErrInvalidStructure, "invalid G1 point", 0)
	}
	return p, offset + g1Len, nil
}

func readG2(data []byte, offset int) (bls12381.G2Affine, int, error) {
	var p bls12381.G2Affine
	if offset+g2Len > len(data) {
		return p, 0, errors.WrapPrefix(ErrInvalidStructure, "truncated G2 point", 0)
	}
	if err := p.Unmarshal(data[offset : offset+g2Len]); err != nil {
		return p, 0, errors.WrapPrefix(ErrInvalidStructure, "invalid G2 point", 0)
	}
	return p, offset + g2Len, nil
}

// SerializeIssuerPublicKey converts an issuer public key to bytes. The
// format is the primary part (attribute count, then per-attribute name and
// base, then n, S, Z, RMS, RCtxt) followed by a revocation flag and, when
// set, the fixed-size revocation points.
func SerializeIssuerPublicKey(pub *IssuerPublicKey) []byte {
	p := pub.Primary
	var buf []byte

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(p.Attrs)))
	buf = append(buf, count[:]...)
	for _, a := range p.Attrs {
		buf = appendString(buf, a)
		buf = appendBigInt(buf, p.R[a])
	}
	buf = appendBigInt(buf, p.N)
	buf = appendBigInt(buf, p.S)
	buf = appendBigInt(buf, p.Z)
	buf = appendBigInt(buf, p.RMS)
	buf = appendBigInt(buf, p.RCtxt)

	if pub.Revocation == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	r := pub.Revocation
	buf = append(buf, r.G.Marshal()...)
	buf = append(buf, r.GDash.Marshal()...)
	buf = append(buf, r.H.Marshal()...)
	buf = append(buf, r.H0.Marshal()...)
	buf = append(buf, r.H1.Marshal()...)
	buf = append(buf, r.H2.Marshal()...)
	buf = append(buf, r.HTilde.Marshal()...)
	buf = append(buf, r.HCap.Marshal()...)
	buf = append(buf, r.U.Marshal()...)
	buf = append(buf, r.PK.Marshal()...)
	buf = append(buf, r.Y.Marshal()...)
	return buf
}

// DeserializeIssuerPublicKey parses the output of SerializeIssuerPublicKey.
func DeserializeIssuerPublicKey(data []byte) (*IssuerPublicKey, error) {
	if len(data) < 5 {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "truncated issuer public key", 0)
	}
	offset := 0
	count := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4

	p := &IssuerPrimaryPublicKey{R: make(map[string]*big.Int, count)}
	var err error
	for i := 0; i < count; i++ {
		var name string
		if name, offset, err = readString(data, offset); err != nil {
			return nil, err
		}
		if _, dup := p.R[name]; dup || name == "" {
			return nil, errors.WrapPrefix(ErrInvalidStructure, "invalid attribute name", 0)
		}
		if p.R[name], offset, err = readBigInt(data, offset); err != nil {
			return nil, err
		}
		p.Attrs = append(p.Attrs, name)
	}
	if p.N, offset, err = readBigInt(data, offset); err != nil {
		return nil, err
	}
	if p.S, offset, err = readBigInt(data, offset); err != nil {
		return nil, err
	}
	if p.Z, offset, err = readBigInt(data, offset); err != nil {
		return nil, err
	}
	if p.RMS, offset, err = readBigInt(data, offset); err != nil {
		return nil, err
	}
	if p.RCtxt, offset, err = readBigInt(data, offset); err != nil {
		return nil, err
	}

	pub := &IssuerPublicKey{Primary: p, Params: &DefaultParams}
	if offset >= len(data) {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "missing revocation flag", 0)
	}
	flag := data[offset]
	offset++
	if flag == 0 {
		return pub, nil
	}

	r := &IssuerRevocationPublicKey{}
	if r.G, offset, err = readG1(data, offset); err != nil {
		return nil, err
	}
	if r.GDash, offset, err = readG2(data, offset); err != nil {
		return nil, err
	}
	if r.H, offset, err = readG1(data, offset); err != nil {
		return nil, err
	}
	if r.H0, offset, err = readG1(data, offset); err != nil {
		return nil, err
	}
	if r.H1, offset, err = readG1(data, offset); err != nil {
		return nil, err
	}
	if r.H2, offset, err = readG1(data, offset); err != nil {
		return nil, err
	}
	if r.HTilde, offset, err = readG1(data, offset); err != nil {
		return nil, err
	}
	if r.HCap, offset, err = readG2(data, offset); err != nil {
		return nil, err
	}
	if r.U, offset, err = readG2(data, offset); err != nil {
		return nil, err
	}
	if r.PK, offset, err = readG1(data, offset); err != nil {
		return nil, err
	}
	if r.Y, _, err = readG2(data, offset); err != nil {
		return nil, err
	}
	pub.Revocation = r
	return pub, nil
}

// SerializeClaimSignature converts the primary part of a claim signature to
// bytes. Witness state is registry-relative and is not transported here.
func SerializeClaimSignature(sig *ClaimSignature) []byte {
	var buf []byte
	buf = appendBigInt(buf, sig.Primary.A)
	buf = appendBigInt(buf, sig.Primary.E)
	buf = appendBigInt(buf, sig.Primary.V)
	buf = appendBigInt(buf, sig.M2)
	return buf
}

// DeserializeClaimSignature parses the output of SerializeClaimSignature.
func DeserializeClaimSignature(data []byte) (*ClaimSignature, error) {
	offset := 0
	var err error
	primary := &PrimaryClaimSignature{}
	if primary.A, offset, err = readBigInt(data, offset); err != nil {
		return nil, err
	}
	if primary.E, offset, err = readBigInt(data, offset); err != nil {
		return nil, err
	}
	if primary.V, offset, err = readBigInt(data, offset); err != nil {
		return nil, err
	}
	sig := &ClaimSignature{Primary: primary}
	if sig.M2, _, err = readBigInt(data, offset); err != nil {
		return nil, err
	}
	return sig, nil
}
