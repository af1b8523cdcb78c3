package cl

import (
	"crypto/rand"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/go-errors/errors"

	"github.com/kdenhartog/indy-crypto/internal/common"
)

// GroupOrder is the order of the BLS12-381 groups G1, G2 and GT.
var GroupOrder, _ = new(big.Int).SetString("52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)

// IssuerPrimaryPublicKey is the strong-RSA half of an issuer key. All bases
// are quadratic residues modulo N.
type IssuerPrimaryPublicKey struct {
	N     *big.Int
	S     *big.Int
	Z     *big.Int
	RMS   *big.Int            // base for the prover's master secret
	RCtxt *big.Int            // base for the context attribute m2
	R     map[string]*big.Int // per-attribute bases
	Attrs []string            // schema order
}

// IssuerPrimaryPrivateKey holds the factorization of N.
type IssuerPrimaryPrivateKey struct {
	P      *big.Int
	Q      *big.Int
	PPrime *big.Int
	QPrime *big.Int
}

// Order returns p'q', the order of QR(n).
func (sk *IssuerPrimaryPrivateKey) Order() *big.Int {
	return new(big.Int).Mul(sk.PPrime, sk.QPrime)
}

// Zeroize wipes the private factors.
func (sk *IssuerPrimaryPrivateKey) Zeroize() {
	common.WipeAll(sk.P, sk.Q, sk.PPrime, sk.QPrime)
}

// IssuerRevocationPublicKey is the pairing half of an issuer key, used by
// the CKS accumulator protocol.
type IssuerRevocationPublicKey struct {
	G      bls12381.G1Affine
	GDash  bls12381.G2Affine
	H      bls12381.G1Affine
	H0     bls12381.G1Affine
	H1     bls12381.G1Affine
	H2     bls12381.G1Affine
	HTilde bls12381.G1Affine
	HCap   bls12381.G2Affine
	U      bls12381.G2Affine
	PK     bls12381.G1Affine // G^sk
	Y      bls12381.G2Affine // HCap^x
}

// IssuerRevocationPrivateKey holds the revocation secrets.
type IssuerRevocationPrivateKey struct {
	X  *big.Int
	SK *big.Int
}

// Zeroize wipes the revocation secrets.
func (sk *IssuerRevocationPrivateKey) Zeroize() {
	common.WipeAll(sk.X, sk.SK)
}

// IssuerPublicKey bundles the primary key with the optional revocation key.
type IssuerPublicKey struct {
	Primary    *IssuerPrimaryPublicKey
	Revocation *IssuerRevocationPublicKey
	Params     *Params
}

// IssuerPrivateKey bundles the primary private key with the optional
// revocation private key.
type IssuerPrivateKey struct {
	Primary    *IssuerPrimaryPrivateKey
	Revocation *IssuerRevocationPrivateKey
}

// Zeroize wipes all private material.
func (sk *IssuerPrivateKey) Zeroize() {
	sk.Primary.Zeroize()
	if sk.Revocation != nil {
		sk.Revocation.Zeroize()
	}
}

// NewKeys generates an issuer key pair for the given schema. The revocation
// half is produced only when withRevocation is set.
func NewKeys(schema *ClaimSchema, withRevocation bool) (*IssuerPublicKey, *IssuerPrivateKey, error) {
	return NewKeysFromReader(rand.Reader, schema, withRevocation)
}

// NewKeysFromReader is NewKeys with an injected randomness source.
func NewKeysFromReader(rng io.Reader, schema *ClaimSchema, withRevocation bool) (*IssuerPublicKey, *IssuerPrivateKey, error) {
	if schema == nil || schema.Len() == 0 {
		return nil, nil, errors.WrapPrefix(ErrInvalidStructure, "empty claim schema", 0)
	}
	params := &DefaultParams

	primaryPub, primaryPriv, err := newPrimaryKeys(rng, params, schema)
	if err != nil {
		return nil, nil, err
	}

	pub := &IssuerPublicKey{Primary: primaryPub, Params: params}
	priv := &IssuerPrivateKey{Primary: primaryPriv}

	if withRevocation {
		revPub, revPriv, err := newRevocationKeys(rng)
		if err != nil {
			return nil, nil, err
		}
		pub.Revocation = revPub
		priv.Revocation = revPriv
	}

	return pub, priv, nil
}

func newPrimaryKeys(rng io.Reader, params *Params, schema *ClaimSchema) (*IssuerPrimaryPublicKey, *IssuerPrimaryPrivateKey, error) {
	primeBits := params.LN / 2

	p, err := common.RandomSafePrime(rng, primeBits)
	if err != nil {
		return nil, nil, err
	}
	q, err := common.RandomSafePrime(rng, primeBits)
	if err != nil {
		return nil, nil, err
	}

	priv := &IssuerPrimaryPrivateKey{P: p, Q: q, PPrime: new(big.Int), QPrime: new(big.Int)}
	priv.PPrime.Sub(p, big.NewInt(1)).Rsh(priv.PPrime, 1)
	priv.QPrime.Sub(q, big.NewInt(1)).Rsh(priv.QPrime, 1)

	n := new(big.Int).Mul(p, q)

	s, err := common.RandomQR(rng, n)
	if err != nil {
		return nil, nil, err
	}

	// All further bases are powers of S with secret exponents from
	// [2, p'q'), so they stay in the subgroup S generates.
	order := priv.Order()
	exp := func() (*big.Int, error) {
		return common.RandomInInterval(rng, big.NewInt(2), order)
	}

	xz, err := exp()
	if err != nil {
		return nil, nil, err
	}
	z := new(big.Int).Exp(s, xz, n)
	common.Wipe(xz)

	xms, err := exp()
	if err != nil {
		return nil, nil, err
	}
	rms := new(big.Int).Exp(s, xms, n)
	common.Wipe(xms)

	xctxt, err := exp()
	if err != nil {
		return nil, nil, err
	}
	rctxt := new(big.Int).Exp(s, xctxt, n)
	common.Wipe(xctxt)

	attrs := schema.Attrs()
	r := make(map[string]*big.Int, len(attrs))
	for _, a := range attrs {
		xa, err := exp()
		if err != nil {
			return nil, nil, err
		}
		r[a] = new(big.Int).Exp(s, xa, n)
		common.Wipe(xa)
	}
	common.Wipe(order)

	pub := &IssuerPrimaryPublicKey{
		N:     n,
		S:     s,
		Z:     z,
		RMS:   rms,
		RCtxt: rctxt,
		R:     r,
		Attrs: attrs,
	}
	return pub, priv, nil
}

func newRevocationKeys(rng io.Reader) (*IssuerRevocationPublicKey, *IssuerRevocationPrivateKey, error) {
	pub := &IssuerRevocationPublicKey{}

	_, _, g1, g2 := bls12381.Generators()
	pub.G = g1
	pub.GDash = g2

	var err error
	if pub.H, err = randomG1(rng); err != nil {
		return nil, nil, err
	}
	if pub.H0, err = randomG1(rng); err != nil {
		return nil, nil, err
	}
	if pub.H1, err = randomG1(rng); err != nil {
		return nil, nil, err
	}
	if pub.H2, err = randomG1(rng); err != nil {
		return nil, nil, err
	}
	if pub.HTilde, err = randomG1(rng); err != nil {
		return nil, nil, err
	}
	if pub.HCap, err = randomG2(rng); err != nil {
		return nil, nil, err
	}
	if pub.U, err = randomG2(rng); err != nil {
		return nil, nil, err
	}

	x, err := randomScalar(rng)
	if err != nil {
		return nil, nil, err
	}
	sk, err := randomScalar(rng)
	if err != nil {
		return nil, nil, err
	}

	pub.PK = g1Mul(&pub.G, sk)
	pub.Y = g2Mul(&pub.HCap, x)

	return pub, &IssuerRevocationPrivateKey{X: x, SK: sk}, nil
}
