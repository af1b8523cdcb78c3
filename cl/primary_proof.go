package cl

import (
	"io"
	"math/big"

	"github.com/go-errors/errors"

	"github.com/kdenhartog/indy-crypto/internal/common"
)

// PrimaryEqProof proves knowledge of a CL signature over the claim, with
// the revealed attributes disclosed and everything else hidden behind
// Schnorr responses.
type PrimaryEqProof struct {
	APrime        *big.Int
	EHat          *big.Int
	VHat          *big.Int
	MHat          map[string]*big.Int
	MSHat         *big.Int
	M2Hat         *big.Int
	RevealedAttrs map[string]*big.Int
}

// PrimaryPredicateGEProof proves attr >= threshold through a four-square
// decomposition of the difference.
type PrimaryPredicateGEProof struct {
	Attr      string
	Threshold int64
	T         [4]*big.Int // Z^u_i * S^r_i
	TDelta    *big.Int    // Z^delta * S^r_delta
	UHat      [4]*big.Int
	RHat      [4]*big.Int
	RDeltaHat *big.Int
	AlphaHat  *big.Int
}

// PrimarySubProof bundles the equality proof with the predicate proofs of
// one credential.
type PrimarySubProof struct {
	Eq  *PrimaryEqProof
	GEs []*PrimaryPredicateGEProof
}

// primaryProofInit carries the prover state between the commit and respond
// phases of one credential's primary sub-proof.
type primaryProofInit struct {
	pub    *IssuerPublicKey
	values *ClaimValues

	aPrime *big.Int
	ePrime *big.Int
	vPrime *big.Int

	eTilde  *big.Int
	vTilde  *big.Int
	mTilde  map[string]*big.Int
	msTilde *big.Int
	m2Tilde *big.Int
	m2      *big.Int

	hidden   []string
	revealed map[string]*big.Int

	tauEq *big.Int

	predicates []*gePredicateInit
}

// gePredicateInit is the per-predicate prover state.
type gePredicateInit struct {
	pred   *Predicate
	u      [4]*big.Int
	r      [4]*big.Int
	rDelta *big.Int

	uTilde      [4]*big.Int
	rTilde      [4]*big.Int
	rDeltaTilde *big.Int
	alphaTilde  *big.Int

	t      [4]*big.Int
	tDelta *big.Int

	tauList [6]*big.Int
}

// newPrimaryProofInit randomizes the signature and commits to every hidden
// exponent. m2Tilde is shared with the non-revocation sub-proof when one is
// present, binding the two.
func newPrimaryProofInit(rng io.Reader, sig *ClaimSignature, values *ClaimValues,
	pub *IssuerPublicKey, req *SubProofRequest, m2Tilde *big.Int) (*primaryProofInit, error) {

	p := pub.Primary
	params := pub.Params

	// Randomize the signature: A' = A * S^r, v' = v - e*r, e' = e - 2^LE.
	r, err := common.RandomBigInt(rng, params.LVPrime)
	if err != nil {
		return nil, err
	}
	aPrime := new(big.Int).Exp(p.S, r, p.N)
	aPrime.Mul(aPrime, sig.Primary.A).Mod(aPrime, p.N)
	vPrime := new(big.Int).Mul(sig.Primary.E, r)
	vPrime.Sub(sig.Primary.V, vPrime)
	common.Wipe(r)
	ePrime := new(big.Int).Sub(sig.Primary.E, params.eOffset())

	init := &primaryProofInit{
		pub:      pub,
		values:   values,
		aPrime:   aPrime,
		ePrime:   ePrime,
		vPrime:   vPrime,
		mTilde:   make(map[string]*big.Int),
		m2:       sig.M2,
		revealed: make(map[string]*big.Int),
	}

	revealedSet := make(map[string]bool)
	for _, a := range req.RevealedAttrs() {
		revealedSet[a] = true
		init.revealed[a] = values.Value(a)
	}
	for _, a := range p.Attrs {
		if !revealedSet[a] {
			init.hidden = append(init.hidden, a)
		}
	}

	if init.eTilde, err = common.RandomBigInt(rng, params.LETilde); err != nil {
		return nil, err
	}
	if init.vTilde, err = common.RandomBigInt(rng, params.LVTilde); err != nil {
		return nil, err
	}
	if init.msTilde, err = common.RandomBigInt(rng, params.LMTilde); err != nil {
		return nil, err
	}
	if m2Tilde != nil {
		init.m2Tilde = new(big.Int).Set(m2Tilde)
	} else if init.m2Tilde, err = common.RandomBigInt(rng, params.LMTilde); err != nil {
		return nil, err
	}
	for _, a := range init.hidden {
		if init.mTilde[a], err = common.RandomBigInt(rng, params.LMTilde); err != nil {
			return nil, err
		}
	}

	// tau_eq = A'^eTilde * S^vTilde * prod R[a]^mTilde * RMS^msTilde *
	// RCtxt^m2Tilde mod n
	tau := new(big.Int).Exp(aPrime, init.eTilde, p.N)
	tau.Mul(tau, new(big.Int).Exp(p.S, init.vTilde, p.N)).Mod(tau, p.N)
	for _, a := range init.hidden {
		tau.Mul(tau, new(big.Int).Exp(p.R[a], init.mTilde[a], p.N)).Mod(tau, p.N)
	}
	tau.Mul(tau, new(big.Int).Exp(p.RMS, init.msTilde, p.N)).Mod(tau, p.N)
	tau.Mul(tau, new(big.Int).Exp(p.RCtxt, init.m2Tilde, p.N)).Mod(tau, p.N)
	init.tauEq = tau

	for _, pred := range req.Predicates() {
		ge, err := newGEPredicateInit(rng, pub, init, pred)
		if err != nil {
			return nil, err
		}
		init.predicates = append(init.predicates, ge)
	}

	return init, nil
}

// newGEPredicateInit decomposes delta into four squares and commits to the
// decomposition.
func newGEPredicateInit(rng io.Reader, pub *IssuerPublicKey, eq *primaryProofInit, pred *Predicate) (*gePredicateInit, error) {
	p := pub.Primary
	params := pub.Params

	value := eq.values.Value(pred.Attr)
	delta := new(big.Int).Sub(value, big.NewInt(pred.Threshold))
	if delta.Sign() < 0 {
		return nil, errors.WrapPrefix(ErrInvalidStructure, "predicate is not satisfied", 0)
	}

	squares, err := common.FourSquares(rng, delta)
	if err != nil {
		return nil, err
	}

	ge := &gePredicateInit{pred: pred}
	copy(ge.u[:], squares[:])

	for i := 0; i < 4; i++ {
		if ge.r[i], err = common.RandomBigInt(rng, params.LVPrime); err != nil {
			return nil, err
		}
		ge.t[i] = new(big.Int).Exp(p.Z, ge.u[i], p.N)
		ge.t[i].Mul(ge.t[i], new(big.Int).Exp(p.S, ge.r[i], p.N)).Mod(ge.t[i], p.N)
	}
	if ge.rDelta, err = common.RandomBigInt(rng, params.LVPrime); err != nil {
		return nil, err
	}
	ge.tDelta = new(big.Int).Exp(p.Z, delta, p.N)
	ge.tDelta.Mul(ge.tDelta, new(big.Int).Exp(p.S, ge.rDelta, p.N)).Mod(ge.tDelta, p.N)

	for i := 0; i < 4; i++ {
		if ge.uTilde[i], err = common.RandomBigInt(rng, params.LUTilde); err != nil {
			return nil, err
		}
		if ge.rTilde[i], err = common.RandomBigInt(rng, params.LRTilde); err != nil {
			return nil, err
		}
	}
	if ge.rDeltaTilde, err = common.RandomBigInt(rng, params.LRTilde); err != nil {
		return nil, err
	}
	if ge.alphaTilde, err = common.RandomBigInt(rng, params.LAlphaTilde); err != nil {
		return nil, err
	}

	// tau_i = Z^uTilde_i * S^rTilde_i; tau_delta = Z^mTilde_j * S^rDeltaTilde;
	// Q = S^alphaTilde * prod T_i^uTilde_i
	for i := 0; i < 4; i++ {
		tau := new(big.Int).Exp(p.Z, ge.uTilde[i], p.N)
		tau.Mul(tau, new(big.Int).Exp(p.S, ge.rTilde[i], p.N)).Mod(tau, p.N)
		ge.tauList[i] = tau
	}
	tauDelta := new(big.Int).Exp(p.Z, eq.mTilde[pred.Attr], p.N)
	tauDelta.Mul(tauDelta, new(big.Int).Exp(p.S, ge.rDeltaTilde, p.N)).Mod(tauDelta, p.N)
	ge.tauList[4] = tauDelta

	q := new(big.Int).Exp(p.S, ge.alphaTilde, p.N)
	for i := 0; i < 4; i++ {
		q.Mul(q, new(big.Int).Exp(ge.t[i], ge.uTilde[i], p.N)).Mod(q, p.N)
	}
	ge.tauList[5] = q

	return ge, nil
}

// appendCommitments appends the sub-proof's commitment values (A' and the
// predicate T-lists) to the transcript.
func (init *primaryProofInit) appendCommitments(buf []byte) []byte {
	size := init.pub.Params.nByteLen()
	buf = common.AppendFixed(buf, init.aPrime, size)
	for _, ge := range init.predicates {
		for i := 0; i < 4; i++ {
			buf = common.AppendFixed(buf, ge.t[i], size)
		}
		buf = common.AppendFixed(buf, ge.tDelta, size)
	}
	return buf
}

// appendTauList appends the sub-proof's tau values to the transcript.
func (init *primaryProofInit) appendTauList(buf []byte) []byte {
	size := init.pub.Params.nByteLen()
	buf = common.AppendFixed(buf, init.tauEq, size)
	for _, ge := range init.predicates {
		for _, tau := range ge.tauList {
			buf = common.AppendFixed(buf, tau, size)
		}
	}
	return buf
}

// appendRevealed appends the revealed attribute values in schema order.
func (init *primaryProofInit) appendRevealed(buf []byte) []byte {
	for _, a := range init.pub.Primary.Attrs {
		if v, ok := init.revealed[a]; ok {
			buf = append(buf, v.Bytes()...)
		}
	}
	return buf
}

// respond computes the Schnorr responses for challenge c and wipes the
// randomizers.
func (init *primaryProofInit) respond(c *big.Int, ms *MasterSecret) *PrimarySubProof {
	eq := &PrimaryEqProof{
		APrime:        init.aPrime,
		MHat:          make(map[string]*big.Int, len(init.hidden)),
		RevealedAttrs: make(map[string]*big.Int, len(init.revealed)),
	}
	eq.EHat = respondInt(init.eTilde, c, init.ePrime)
	eq.VHat = respondInt(init.vTilde, c, init.vPrime)
	for _, a := range init.hidden {
		eq.MHat[a] = respondInt(init.mTilde[a], c, init.values.Value(a))
	}
	eq.MSHat = respondInt(init.msTilde, c, ms.MS)
	eq.M2Hat = respondInt(init.m2Tilde, c, init.m2)
	for a, v := range init.revealed {
		eq.RevealedAttrs[a] = new(big.Int).Set(v)
	}

	sub := &PrimarySubProof{Eq: eq}
	for _, ge := range init.predicates {
		proof := &PrimaryPredicateGEProof{
			Attr:      ge.pred.Attr,
			Threshold: ge.pred.Threshold,
			TDelta:    ge.tDelta,
		}
		// alpha = rDelta - sum u_i * r_i, signed over the integers
		alpha := new(big.Int).Set(ge.rDelta)
		for i := 0; i < 4; i++ {
			proof.T[i] = ge.t[i]
			proof.UHat[i] = respondInt(ge.uTilde[i], c, ge.u[i])
			proof.RHat[i] = respondInt(ge.rTilde[i], c, ge.r[i])
			alpha.Sub(alpha, new(big.Int).Mul(ge.u[i], ge.r[i]))
		}
		proof.RDeltaHat = respondInt(ge.rDeltaTilde, c, ge.rDelta)
		proof.AlphaHat = respondInt(ge.alphaTilde, c, alpha)
		sub.GEs = append(sub.GEs, proof)

		common.WipeAll(ge.rDelta, ge.rDeltaTilde, ge.alphaTilde, alpha)
		common.WipeAll(ge.r[:]...)
		common.WipeAll(ge.rTilde[:]...)
		common.WipeAll(ge.uTilde[:]...)
	}

	common.WipeAll(init.eTilde, init.vTilde, init.msTilde, init.m2Tilde, init.ePrime, init.vPrime)
	for _, a := range init.hidden {
		common.Wipe(init.mTilde[a])
	}
	return sub
}

// respondInt computes tilde + c*secret over the integers.
func respondInt(tilde, c, secret *big.Int) *big.Int {
	out := new(big.Int).Mul(c, secret)
	return out.Add(out, tilde)
}

// verifyPrimarySubProof recomputes the sub-proof's tau values from the
// responses and appends them to the transcript buffers. A nil return with
// ok=false means a response was out of range; structural problems are
// errors.
func verifyPrimarySubProof(pub *IssuerPublicKey, req *SubProofRequest, sub *PrimarySubProof,
	c *big.Int, commitBuf, tauBuf []byte) ([]byte, []byte, bool, error) {

	p := pub.Primary
	params := pub.Params
	eq := sub.Eq
	size := params.nByteLen()

	revealedSet := make(map[string]bool)
	for _, a := range req.RevealedAttrs() {
		if !pub.hasAttr(a) {
			return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "revealed attribute not in schema", 0)
		}
		revealedSet[a] = true
		if eq.RevealedAttrs[a] == nil {
			return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "revealed attribute missing from proof", 0)
		}
	}
	var hidden []string
	for _, a := range p.Attrs {
		if revealedSet[a] {
			continue
		}
		if eq.MHat[a] == nil {
			return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "hidden attribute response missing", 0)
		}
		hidden = append(hidden, a)
	}
	preds := req.Predicates()
	if len(preds) != len(sub.GEs) {
		return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "predicate count mismatch", 0)
	}

	// Range checks: a response must not exceed its randomizer width plus
	// the challenge contribution.
	if !inRange(eq.EHat, params.LETilde+params.LC+2) ||
		!inRange(eq.VHat, params.LVTilde+params.LC+2) ||
		!inRange(eq.MSHat, params.LMTilde+params.LC+2) {
		return nil, nil, false, nil
	}
	for _, a := range hidden {
		if !inRange(eq.MHat[a], params.LMTilde+params.LC+2) {
			return nil, nil, false, nil
		}
	}

	// tau_eq = (Z / (A'^2^LE * prod revealed R[a]^m_a))^-c * A'^eHat *
	// S^vHat * prod hidden R[a]^mHat * RMS^msHat * RCtxt^m2Hat
	rar := new(big.Int).Exp(eq.APrime, params.eOffset(), p.N)
	for _, a := range p.Attrs {
		if revealedSet[a] {
			rar.Mul(rar, new(big.Int).Exp(p.R[a], eq.RevealedAttrs[a], p.N)).Mod(rar, p.N)
		}
	}
	rarInv, ok := common.ModInverse(rar, p.N)
	if !ok {
		return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "proof base is not invertible", 0)
	}
	zDiv := new(big.Int).Mul(p.Z, rarInv)
	zDiv.Mod(zDiv, p.N)
	tau, err := common.ModPow(zDiv, new(big.Int).Neg(c), p.N)
	if err != nil {
		return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "proof base is not invertible", 0)
	}
	tau.Mul(tau, new(big.Int).Exp(eq.APrime, eq.EHat, p.N)).Mod(tau, p.N)
	tau.Mul(tau, new(big.Int).Exp(p.S, eq.VHat, p.N)).Mod(tau, p.N)
	for _, a := range hidden {
		tau.Mul(tau, new(big.Int).Exp(p.R[a], eq.MHat[a], p.N)).Mod(tau, p.N)
	}
	tau.Mul(tau, new(big.Int).Exp(p.RMS, eq.MSHat, p.N)).Mod(tau, p.N)
	tau.Mul(tau, new(big.Int).Exp(p.RCtxt, eq.M2Hat, p.N)).Mod(tau, p.N)

	commitBuf = common.AppendFixed(commitBuf, eq.APrime, size)
	tauBuf = common.AppendFixed(tauBuf, tau, size)

	negC := new(big.Int).Neg(c)
	for i, ge := range sub.GEs {
		pred := preds[i]
		if ge.Attr != pred.Attr || ge.Threshold != pred.Threshold {
			return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "predicate mismatch", 0)
		}
		mHat := eq.MHat[pred.Attr]
		if mHat == nil {
			return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "predicate attribute is not hidden", 0)
		}
		for j := 0; j < 4; j++ {
			if !inRange(ge.UHat[j], params.LUTilde+params.LC+2) {
				return nil, nil, false, nil
			}
		}

		// tau_i = T_i^-c * Z^uHat_i * S^rHat_i
		var taus [6]*big.Int
		for j := 0; j < 4; j++ {
			t, err := common.ModPow(ge.T[j], negC, p.N)
			if err != nil {
				return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "predicate commitment is not invertible", 0)
			}
			t.Mul(t, new(big.Int).Exp(p.Z, ge.UHat[j], p.N)).Mod(t, p.N)
			sv, err := common.ModPow(p.S, ge.RHat[j], p.N)
			if err != nil {
				return nil, nil, false, err
			}
			t.Mul(t, sv).Mod(t, p.N)
			taus[j] = t
		}

		// tau_delta = (TDelta * Z^threshold)^-c * Z^mHat_j * S^rDeltaHat
		tDeltaBase := new(big.Int).Exp(p.Z, big.NewInt(pred.Threshold), p.N)
		tDeltaBase.Mul(tDeltaBase, ge.TDelta).Mod(tDeltaBase, p.N)
		tauDelta, err := common.ModPow(tDeltaBase, negC, p.N)
		if err != nil {
			return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "predicate commitment is not invertible", 0)
		}
		tauDelta.Mul(tauDelta, new(big.Int).Exp(p.Z, mHat, p.N)).Mod(tauDelta, p.N)
		sv, err := common.ModPow(p.S, ge.RDeltaHat, p.N)
		if err != nil {
			return nil, nil, false, err
		}
		tauDelta.Mul(tauDelta, sv).Mod(tauDelta, p.N)
		taus[4] = tauDelta

		// Q = TDelta^-c * S^alphaHat * prod T_i^uHat_i
		q, err := common.ModPow(ge.TDelta, negC, p.N)
		if err != nil {
			return nil, nil, false, errors.WrapPrefix(ErrInvalidStructure, "predicate commitment is not invertible", 0)
		}
		sAlpha, err := common.ModPow(p.S, ge.AlphaHat, p.N)
		if err != nil {
			return nil, nil, false, err
		}
		q.Mul(q, sAlpha).Mod(q, p.N)
		for j := 0; j < 4; j++ {
			q.Mul(q, new(big.Int).Exp(ge.T[j], ge.UHat[j], p.N)).Mod(q, p.N)
		}
		taus[5] = q

		for j := 0; j < 4; j++ {
			commitBuf = common.AppendFixed(commitBuf, ge.T[j], size)
		}
		commitBuf = common.AppendFixed(commitBuf, ge.TDelta, size)
		for _, t := range taus {
			tauBuf = common.AppendFixed(tauBuf, t, size)
		}
	}

	return commitBuf, tauBuf, true, nil
}

// inRange reports whether x is non-negative and at most bits wide.
func inRange(x *big.Int, bits uint) bool {
	return x != nil && x.Sign() >= 0 && x.BitLen() <= int(bits)
}

// hasAttr reports whether the primary key carries a base for the attribute.
func (pub *IssuerPublicKey) hasAttr(name string) bool {
	_, ok := pub.Primary.R[name]
	return ok
}
