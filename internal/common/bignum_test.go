package common

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"
)

// drbg is a deterministic reader for reproducibility tests.
type drbg struct {
	state [32]byte
	buf   []byte
}

func newDRBG(seed string) *drbg {
	d := &drbg{state: sha256.Sum256([]byte(seed))}
	return d
}

func (d *drbg) Read(p []byte) (int, error) {
	for len(d.buf) < len(p) {
		d.state = sha256.Sum256(d.state[:])
		d.buf = append(d.buf, d.state[:]...)
	}
	copy(p, d.buf[:len(p)])
	d.buf = d.buf[len(p):]
	return len(p), nil
}

func TestRandomBigIntBounds(t *testing.T) {
	for _, bits := range []uint{1, 8, 80, 256, 1000} {
		r, err := RandomBigInt(rand.Reader, bits)
		if err != nil {
			t.Fatalf("RandomBigInt(%d): %v", bits, err)
		}
		if r.Sign() < 0 || r.BitLen() > int(bits) {
			t.Fatalf("RandomBigInt(%d) = %v out of range", bits, r)
		}
	}
}

func TestRandomInIntervalBounds(t *testing.T) {
	lo := big.NewInt(100)
	hi := big.NewInt(200)
	for i := 0; i < 50; i++ {
		r, err := RandomInInterval(rand.Reader, lo, hi)
		if err != nil {
			t.Fatalf("RandomInInterval: %v", err)
		}
		if r.Cmp(lo) < 0 || r.Cmp(hi) >= 0 {
			t.Fatalf("RandomInInterval = %v outside [100, 200)", r)
		}
	}
}

func TestRandomSamplingIsDeterministic(t *testing.T) {
	a, err := RandomBigInt(newDRBG("seed"), 256)
	if err != nil {
		t.Fatalf("RandomBigInt: %v", err)
	}
	b, err := RandomBigInt(newDRBG("seed"), 256)
	if err != nil {
		t.Fatalf("RandomBigInt: %v", err)
	}
	if a.Cmp(b) != 0 {
		t.Fatalf("seeded sampling diverged: %v vs %v", a, b)
	}
}

func TestRandomPrimeInRange(t *testing.T) {
	p, err := RandomPrimeInRange(rand.Reader, 64, 16)
	if err != nil {
		t.Fatalf("RandomPrimeInRange: %v", err)
	}
	lo := new(big.Int).Lsh(big.NewInt(1), 64)
	hi := new(big.Int).Add(lo, new(big.Int).Lsh(big.NewInt(1), 16))
	if p.Cmp(lo) < 0 || p.Cmp(hi) >= 0 {
		t.Fatalf("prime %v outside [2^64, 2^64+2^16)", p)
	}
	if !p.ProbablyPrime(64) {
		t.Fatalf("%v is not prime", p)
	}
}

func TestRandomSafePrime(t *testing.T) {
	p, err := RandomSafePrime(rand.Reader, 64)
	if err != nil {
		t.Fatalf("RandomSafePrime: %v", err)
	}
	if p.BitLen() != 64 {
		t.Fatalf("safe prime has %d bits, want 64", p.BitLen())
	}
	p2 := new(big.Int).Rsh(p, 1)
	if !p.ProbablyPrime(64) || !p2.ProbablyPrime(64) {
		t.Fatalf("%v is not a safe prime", p)
	}
}

func TestRandomQR(t *testing.T) {
	p, _ := RandomSafePrime(rand.Reader, 32)
	q, _ := RandomSafePrime(rand.Reader, 32)
	n := new(big.Int).Mul(p, q)
	r, err := RandomQR(rand.Reader, n)
	if err != nil {
		t.Fatalf("RandomQR: %v", err)
	}
	if LegendreSymbol(r, p) != 1 || LegendreSymbol(r, q) != 1 {
		t.Fatalf("%v is not a quadratic residue mod %v", r, n)
	}
}

func TestModPowNegativeExponent(t *testing.T) {
	n := big.NewInt(101)
	base := big.NewInt(7)
	got, err := ModPow(base, big.NewInt(-1), n)
	if err != nil {
		t.Fatalf("ModPow: %v", err)
	}
	check := new(big.Int).Mul(got, base)
	check.Mod(check, n)
	if check.Int64() != 1 {
		t.Fatalf("7 * 7^-1 = %v mod 101, want 1", check)
	}
}

func TestModInverse(t *testing.T) {
	if _, ok := ModInverse(big.NewInt(6), big.NewInt(9)); ok {
		t.Fatal("gcd(6, 9) > 1 but an inverse was returned")
	}
	inv, ok := ModInverse(big.NewInt(3), big.NewInt(7))
	if !ok || inv.Int64() != 5 {
		t.Fatalf("3^-1 mod 7 = %v, want 5", inv)
	}
}

func TestAppendFixed(t *testing.T) {
	buf := AppendFixed(nil, big.NewInt(0x0102), 4)
	if !bytes.Equal(buf, []byte{0, 0, 1, 2}) {
		t.Fatalf("AppendFixed = %x, want 00000102", buf)
	}
}

func TestWipe(t *testing.T) {
	x := new(big.Int).Lsh(big.NewInt(12345), 300)
	words := x.Bits()
	Wipe(x)
	if x.Sign() != 0 {
		t.Fatalf("wiped value is %v, want 0", x)
	}
	for i, w := range words {
		if w != 0 {
			t.Fatalf("backing word %d not cleared", i)
		}
	}
}

func TestIntHashSHA256(t *testing.T) {
	a := IntHashSHA256([]byte("input"))
	b := IntHashSHA256([]byte("input"))
	if a.Cmp(b) != 0 {
		t.Fatal("hash is not deterministic")
	}
	if a.BitLen() > 256 {
		t.Fatalf("hash is %d bits wide", a.BitLen())
	}
}
