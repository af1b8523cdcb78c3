package cl

import (
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/go-errors/errors"
)

// nonRevProofCList holds the blinded witness elements published with a
// non-revocation sub-proof.
type nonRevProofCList struct {
	E bls12381.G1Affine // h^rho * hTilde^o
	D bls12381.G1Affine // g^r * hTilde^o'
	A bls12381.G1Affine // sigma * hTilde^rho
	G bls12381.G1Affine // g_i * hTilde^r
	W bls12381.G2Affine // omega * hCap^r'
	S bls12381.G2Affine // sigma_i * hCap^r''
	U bls12381.G2Affine // u_i * hCap^r'''
}

// nonRevProofXList is the scalar vector of the CKS sigma-protocol. In the
// proof message it holds the responses; inside the builder it holds first
// the secrets, then the randomizers.
type nonRevProofXList struct {
	Rho              *big.Int
	O                *big.Int
	C                *big.Int
	OPrime           *big.Int
	M                *big.Int
	MPrime           *big.Int
	T                *big.Int
	TPrime           *big.Int
	M2               *big.Int
	S                *big.Int
	R                *big.Int
	RPrime           *big.Int
	RPrimePrime      *big.Int
	RPrimePrimePrime *big.Int
}

func (x *nonRevProofXList) asSlice() []*big.Int {
	return []*big.Int{x.Rho, x.O, x.C, x.OPrime, x.M, x.MPrime, x.T, x.TPrime,
		x.M2, x.S, x.R, x.RPrime, x.RPrimePrime, x.RPrimePrimePrime}
}

// NonRevocationProof is the proof fragment showing the credential's witness
// is valid against the current accumulator.
type NonRevocationProof struct {
	CList nonRevProofCList
	XList nonRevProofXList
}

// nonRevTauList is the list of first-message values T1..T8; T1, T2, T5, T6
// live in G1 and the rest in GT.
type nonRevTauList struct {
	T1 bls12381.G1Affine
	T2 bls12381.G1Affine
	T3 bls12381.GT
	T4 bls12381.GT
	T5 bls12381.G1Affine
	T6 bls12381.G1Affine
	T7 bls12381.GT
	T8 bls12381.GT
}

func (t *nonRevTauList) appendTo(buf []byte) []byte {
	buf = append(buf, t.T1.Marshal()...)
	buf = append(buf, t.T2.Marshal()...)
	buf = append(buf, t.T3.Marshal()...)
	buf = append(buf, t.T4.Marshal()...)
	buf = append(buf, t.T5.Marshal()...)
	buf = append(buf, t.T6.Marshal()...)
	buf = append(buf, t.T7.Marshal()...)
	buf = append(buf, t.T8.Marshal()...)
	return buf
}

func (c *nonRevProofCList) appendTo(buf []byte) []byte {
	buf = append(buf, c.E.Marshal()...)
	buf = append(buf, c.D.Marshal()...)
	buf = append(buf, c.A.Marshal()...)
	buf = append(buf, c.G.Marshal()...)
	buf = append(buf, c.W.Marshal()...)
	buf = append(buf, c.S.Marshal()...)
	buf = append(buf, c.U.Marshal()...)
	return buf
}

// nonRevProofInit carries the prover state of one non-revocation sub-proof
// between commit and respond.
type nonRevProofInit struct {
	revPub  *IssuerRevocationPublicKey
	reg     *RevocationRegistryPublic
	secrets *nonRevProofXList
	tildes  *nonRevProofXList
	cList   nonRevProofCList
	tauList nonRevTauList
}

// m2Tilde exposes the randomizer shared with the primary sub-proof.
func (init *nonRevProofInit) m2Tilde() *big.Int {
	return init.tildes.M2
}

// newNonRevProofInit blinds the witness and computes the first-message tau
// list.
func newNonRevProofInit(rng io.Reader, revPub *IssuerRevocationPublicKey,
	reg *RevocationRegistryPublic, nr *NonRevocationClaim) (*nonRevProofInit, error) {

	rho, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}
	r, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}
	rPrime, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}
	rPrimePrime, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}
	rPrimePrimePrime, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}
	o, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}
	oPrime, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}

	secrets := &nonRevProofXList{
		Rho:              rho,
		O:                o,
		C:                new(big.Int).Mod(nr.C, GroupOrder),
		OPrime:           oPrime,
		M:                scalarMulAdd(new(big.Int), rho, nr.C),
		MPrime:           scalarMulAdd(new(big.Int), r, rPrimePrime),
		T:                scalarMulAdd(new(big.Int), o, nr.C),
		TPrime:           scalarMulAdd(new(big.Int), oPrime, rPrimePrime),
		M2:               new(big.Int).Mod(nr.M2, GroupOrder),
		S:                new(big.Int).Mod(nr.Vr, GroupOrder),
		R:                r,
		RPrime:           rPrime,
		RPrimePrime:      rPrimePrime,
		RPrimePrimePrime: rPrimePrimePrime,
	}

	var cList nonRevProofCList
	hRho := g1Mul(&revPub.H, rho)
	hTildeO := g1Mul(&revPub.HTilde, o)
	cList.E = g1Add(&hRho, &hTildeO)

	gR := g1Mul(&revPub.G, r)
	hTildeOPrime := g1Mul(&revPub.HTilde, oPrime)
	cList.D = g1Add(&gR, &hTildeOPrime)

	hTildeRho := g1Mul(&revPub.HTilde, rho)
	cList.A = g1Add(&nr.Sigma, &hTildeRho)

	hTildeR := g1Mul(&revPub.HTilde, r)
	cList.G = g1Add(&nr.GI, &hTildeR)

	hCapRPrime := g2Mul(&revPub.HCap, rPrime)
	cList.W = g2Add(&nr.Witness.Omega, &hCapRPrime)

	hCapRPrimePrime := g2Mul(&revPub.HCap, rPrimePrime)
	cList.S = g2Add(&nr.Witness.SigmaI, &hCapRPrimePrime)

	hCapRPrimePrimePrime := g2Mul(&revPub.HCap, rPrimePrimePrime)
	cList.U = g2Add(&nr.Witness.UI, &hCapRPrimePrimePrime)

	tildes := &nonRevProofXList{}
	tildeSlots := []**big.Int{&tildes.Rho, &tildes.O, &tildes.C, &tildes.OPrime,
		&tildes.M, &tildes.MPrime, &tildes.T, &tildes.TPrime, &tildes.M2,
		&tildes.S, &tildes.R, &tildes.RPrime, &tildes.RPrimePrime, &tildes.RPrimePrimePrime}
	for _, slot := range tildeSlots {
		v, err := randomScalar(rng)
		if err != nil {
			return nil, err
		}
		*slot = v
	}

	tauList, err := nonRevTauListValues(revPub, reg, tildes, &cList)
	if err != nil {
		return nil, err
	}

	return &nonRevProofInit{
		revPub:  revPub,
		reg:     reg,
		secrets: secrets,
		tildes:  tildes,
		cList:   cList,
		tauList: *tauList,
	}, nil
}

// respond computes the mod-q responses for challenge c.
func (init *nonRevProofInit) respond(c *big.Int) *NonRevocationProof {
	chal := new(big.Int).Mod(c, GroupOrder)
	sec := init.secrets.asSlice()
	til := init.tildes.asSlice()

	hats := make([]*big.Int, len(sec))
	for i := range sec {
		hats[i] = scalarMulAdd(til[i], chal, sec[i])
	}
	x := nonRevProofXList{
		Rho: hats[0], O: hats[1], C: hats[2], OPrime: hats[3],
		M: hats[4], MPrime: hats[5], T: hats[6], TPrime: hats[7],
		M2: hats[8], S: hats[9], R: hats[10], RPrime: hats[11],
		RPrimePrime: hats[12], RPrimePrimePrime: hats[13],
	}
	return &NonRevocationProof{CList: init.cList, XList: x}
}

// nonRevTauListValues evaluates the sigma-protocol first-message equations
// on an x vector (randomizers on the prover side, responses on the
// verifier side).
func nonRevTauListValues(revPub *IssuerRevocationPublicKey, reg *RevocationRegistryPublic,
	x *nonRevProofXList, c *nonRevProofCList) (*nonRevTauList, error) {

	out := &nonRevTauList{}

	// T1 = h^rho * hTilde^o
	hRho := g1Mul(&revPub.H, x.Rho)
	hTildeO := g1Mul(&revPub.HTilde, x.O)
	out.T1 = g1Add(&hRho, &hTildeO)

	// T2 = E^c * h^-m * hTilde^-t
	eC := g1Mul(&c.E, x.C)
	hM := g1Mul(&revPub.H, negScalar(x.M))
	hTildeT := g1Mul(&revPub.HTilde, negScalar(x.T))
	out.T2 = g1Add(&eC, &hM)
	out.T2 = g1Add(&out.T2, &hTildeT)

	// T3 = e(A, hCap)^c * e(hTilde, hCap)^(r - m) * e(hTilde, y)^-rho *
	//      e(h1, hCap)^-m2 * e(h2, hCap)^-s
	aHCap, err := pair(&c.A, &revPub.HCap)
	if err != nil {
		return nil, err
	}
	hTildeHCap, err := pair(&revPub.HTilde, &revPub.HCap)
	if err != nil {
		return nil, err
	}
	hTildeY, err := pair(&revPub.HTilde, &revPub.Y)
	if err != nil {
		return nil, err
	}
	h1HCap, err := pair(&revPub.H1, &revPub.HCap)
	if err != nil {
		return nil, err
	}
	h2HCap, err := pair(&revPub.H2, &revPub.HCap)
	if err != nil {
		return nil, err
	}
	t3 := gtExp(&aHCap, x.C)
	rMinusM := new(big.Int).Sub(x.R, x.M)
	part := gtExp(&hTildeHCap, rMinusM)
	t3 = gtMul(&t3, &part)
	part = gtExp(&hTildeY, new(big.Int).Neg(x.Rho))
	t3 = gtMul(&t3, &part)
	part = gtExp(&h1HCap, new(big.Int).Neg(x.M2))
	t3 = gtMul(&t3, &part)
	part = gtExp(&h2HCap, new(big.Int).Neg(x.S))
	out.T3 = gtMul(&t3, &part)

	// T4 = e(hTilde, acc)^r * e(g, hCap)^-r'
	hTildeAcc, err := pair(&revPub.HTilde, &reg.Acc)
	if err != nil {
		return nil, err
	}
	gHCap, err := pair(&revPub.G, &revPub.HCap)
	if err != nil {
		return nil, err
	}
	t4 := gtExp(&hTildeAcc, x.R)
	part = gtExp(&gHCap, new(big.Int).Neg(x.RPrime))
	out.T4 = gtMul(&t4, &part)

	// T5 = g^r * hTilde^o'
	gR := g1Mul(&revPub.G, x.R)
	hTildeOPrime := g1Mul(&revPub.HTilde, x.OPrime)
	out.T5 = g1Add(&gR, &hTildeOPrime)

	// T6 = D^r'' * g^-m' * hTilde^-t'
	dRPP := g1Mul(&c.D, x.RPrimePrime)
	gMPrime := g1Mul(&revPub.G, negScalar(x.MPrime))
	hTildeTPrime := g1Mul(&revPub.HTilde, negScalar(x.TPrime))
	out.T6 = g1Add(&dRPP, &gMPrime)
	out.T6 = g1Add(&out.T6, &hTildeTPrime)

	// T7 = e(pk * G, hCap)^r'' * e(hTilde, hCap)^-m' * e(hTilde, S)^r
	pkG := g1Add(&revPub.PK, &c.G)
	pkGHCap, err := pair(&pkG, &revPub.HCap)
	if err != nil {
		return nil, err
	}
	hTildeS, err := pair(&revPub.HTilde, &c.S)
	if err != nil {
		return nil, err
	}
	t7 := gtExp(&pkGHCap, x.RPrimePrime)
	part = gtExp(&hTildeHCap, new(big.Int).Neg(x.MPrime))
	t7 = gtMul(&t7, &part)
	part = gtExp(&hTildeS, x.R)
	out.T7 = gtMul(&t7, &part)

	// T8 = e(hTilde, u)^r * e(g, hCap)^-r'''
	hTildeU, err := pair(&revPub.HTilde, &revPub.U)
	if err != nil {
		return nil, err
	}
	t8 := gtExp(&hTildeU, x.R)
	part = gtExp(&gHCap, new(big.Int).Neg(x.RPrimePrimePrime))
	out.T8 = gtMul(&t8, &part)

	return out, nil
}

// nonRevTauListExpected evaluates the verifier-side expected values, the
// combinations of published C-values that an honest prover's tau list
// satisfies.
func nonRevTauListExpected(revPub *IssuerRevocationPublicKey, reg *RevocationRegistryPublic,
	c *nonRevProofCList) (*nonRevTauList, error) {

	out := &nonRevTauList{}

	out.T1 = c.E
	// T2 and T6 expect the identity; the zero-value affine point is the
	// point at infinity.

	// T3 = e(h0 * G, hCap) / e(A, y)
	h0G := g1Add(&revPub.H0, &c.G)
	num, err := pair(&h0G, &revPub.HCap)
	if err != nil {
		return nil, err
	}
	den, err := pair(&c.A, &revPub.Y)
	if err != nil {
		return nil, err
	}
	denInv := gtInverse(&den)
	out.T3 = gtMul(&num, &denInv)

	// T4 = e(G, acc) / (e(g, W) * z)
	num, err = pair(&c.G, &reg.Acc)
	if err != nil {
		return nil, err
	}
	den, err = pair(&revPub.G, &c.W)
	if err != nil {
		return nil, err
	}
	den = gtMul(&den, &reg.Z)
	denInv = gtInverse(&den)
	out.T4 = gtMul(&num, &denInv)

	out.T5 = c.D

	// T7 = e(pk * G, S) / e(g, gDash)
	pkG := g1Add(&revPub.PK, &c.G)
	num, err = pair(&pkG, &c.S)
	if err != nil {
		return nil, err
	}
	den, err = pair(&revPub.G, &revPub.GDash)
	if err != nil {
		return nil, err
	}
	denInv = gtInverse(&den)
	out.T7 = gtMul(&num, &denInv)

	// T8 = e(G, u) / e(g, U)
	num, err = pair(&c.G, &revPub.U)
	if err != nil {
		return nil, err
	}
	den, err = pair(&revPub.G, &c.U)
	if err != nil {
		return nil, err
	}
	denInv = gtInverse(&den)
	out.T8 = gtMul(&num, &denInv)

	return out, nil
}

// verifyNonRevSubProof recomputes the tau list from the responses as
// calc(xHat) * expected^-c and appends the C-values and taus to the
// transcript buffers.
func verifyNonRevSubProof(revPub *IssuerRevocationPublicKey, reg *RevocationRegistryPublic,
	proof *NonRevocationProof, c *big.Int, commitBuf, tauBuf []byte) ([]byte, []byte, bool, error) {

	if revPub == nil || reg == nil {
		return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "missing revocation context", 0)
	}
	for _, x := range proof.XList.asSlice() {
		if x == nil || x.Sign() < 0 || x.Cmp(GroupOrder) >= 0 {
			return nil, nil, false, nil
		}
	}

	calc, err := nonRevTauListValues(revPub, reg, &proof.XList, &proof.CList)
	if err != nil {
		return nil, nil, false, err
	}
	expected, err := nonRevTauListExpected(revPub, reg, &proof.CList)
	if err != nil {
		return nil, nil, false, err
	}

	negChal := negScalar(c)

	tau := &nonRevTauList{}
	e1 := g1Mul(&expected.T1, negChal)
	tau.T1 = g1Add(&calc.T1, &e1)
	e1 = g1Mul(&expected.T2, negChal)
	tau.T2 = g1Add(&calc.T2, &e1)
	eT := gtExp(&expected.T3, negChal)
	tau.T3 = gtMul(&calc.T3, &eT)
	eT = gtExp(&expected.T4, negChal)
	tau.T4 = gtMul(&calc.T4, &eT)
	e1 = g1Mul(&expected.T5, negChal)
	tau.T5 = g1Add(&calc.T5, &e1)
	e1 = g1Mul(&expected.T6, negChal)
	tau.T6 = g1Add(&calc.T6, &e1)
	eT = gtExp(&expected.T7, negChal)
	tau.T7 = gtMul(&calc.T7, &eT)
	eT = gtExp(&expected.T8, negChal)
	tau.T8 = gtMul(&calc.T8, &eT)

	commitBuf = proof.CList.appendTo(commitBuf)
	tauBuf = tau.appendTo(tauBuf)
	return commitBuf, tauBuf, true, nil
}
