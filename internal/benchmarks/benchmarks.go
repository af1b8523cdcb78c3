// Package benchmarks times the engine's main operations and reports the
// results as text, CSV or a rendered chart.
package benchmarks

import (
	"fmt"
	"time"

	"github.com/kdenhartog/indy-crypto/cl"
)

// BenchmarkConfig describes one benchmark run.
type BenchmarkConfig struct {
	Name           string
	AttributeCount int
	RevealedCount  int
	Iterations     int
	WithRevocation bool
}

// Result holds the measured timings for one operation.
type Result struct {
	Operation  string
	Iterations int
	Total      time.Duration
	PerOp      time.Duration
}

// Runner executes the configured benchmarks.
type Runner struct {
	config BenchmarkConfig
}

// NewRunner creates a benchmark runner.
func NewRunner(config BenchmarkConfig) *Runner {
	return &Runner{config: config}
}

// RunAll generates one issuer key pair, then times issuance, proof
// construction and verification over the configured iteration count. Key
// generation is timed once; it dominates everything else by minutes.
func (r *Runner) RunAll() ([]Result, error) {
	cfg := r.config

	schemaBuilder := cl.NewClaimSchemaBuilder()
	valuesBuilder := cl.NewClaimValuesBuilder()
	for i := 0; i < cfg.AttributeCount; i++ {
		name := fmt.Sprintf("attr_%d", i)
		if err := schemaBuilder.AddAttr(name); err != nil {
			return nil, err
		}
		if err := valuesBuilder.AddValue(name, fmt.Sprintf("%d", 100+i)); err != nil {
			return nil, err
		}
	}
	schema, err := schemaBuilder.Finalize()
	if err != nil {
		return nil, err
	}
	values, err := valuesBuilder.Finalize()
	if err != nil {
		return nil, err
	}

	var results []Result

	start := time.Now()
	pub, priv, err := cl.NewKeys(schema, cfg.WithRevocation)
	if err != nil {
		return nil, err
	}
	keygenTime := time.Since(start)
	results = append(results, Result{
		Operation:  "keygen",
		Iterations: 1,
		Total:      keygenTime,
		PerOp:      keygenTime,
	})

	var reg *cl.RevocationRegistryPublic
	var regPriv *cl.RevocationRegistryPrivate
	if cfg.WithRevocation {
		reg, regPriv, err = cl.NewRevocationRegistry(pub, uint32(cfg.Iterations)+1)
		if err != nil {
			return nil, err
		}
	}

	ms, err := cl.NewMasterSecret()
	if err != nil {
		return nil, err
	}

	reqBuilder := cl.NewSubProofRequestBuilder()
	for i := 0; i < cfg.RevealedCount && i < cfg.AttributeCount; i++ {
		if err := reqBuilder.AddRevealedAttr(fmt.Sprintf("attr_%d", i)); err != nil {
			return nil, err
		}
	}
	req, err := reqBuilder.Finalize()
	if err != nil {
		return nil, err
	}

	issued := make([]*cl.ClaimSignature, cfg.Iterations)
	start = time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		blindedMS, blindingData, err := cl.BlindMasterSecret(pub, ms)
		if err != nil {
			return nil, err
		}
		var revIdx uint32
		if cfg.WithRevocation {
			revIdx = uint32(i) + 1
		}
		sig, err := cl.SignClaim("benchmark_prover", blindedMS, values, pub, priv, revIdx, reg, regPriv)
		if err != nil {
			return nil, err
		}
		if err := cl.ProcessClaimSignature(sig, blindingData, values, pub, reg); err != nil {
			return nil, err
		}
		issued[i] = sig
	}
	total := time.Since(start)
	results = append(results, Result{
		Operation:  "issue",
		Iterations: cfg.Iterations,
		Total:      total,
		PerOp:      total / time.Duration(cfg.Iterations),
	})

	proofs := make([]*cl.Proof, cfg.Iterations)
	nonces := make([]*cl.Nonce, cfg.Iterations)
	start = time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		nonce, err := cl.NewNonce()
		if err != nil {
			return nil, err
		}
		builder := cl.NewProofBuilder()
		if err := builder.AddSubProofRequest("bench_key", issued[i], values, pub, reg, req, schema); err != nil {
			return nil, err
		}
		proof, err := builder.Finalize(nonce, ms)
		if err != nil {
			return nil, err
		}
		proofs[i] = proof
		nonces[i] = nonce
	}
	total = time.Since(start)
	results = append(results, Result{
		Operation:  "prove",
		Iterations: cfg.Iterations,
		Total:      total,
		PerOp:      total / time.Duration(cfg.Iterations),
	})

	start = time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		verifier := cl.NewProofVerifier()
		if err := verifier.AddSubProofRequest("bench_key", pub, reg, req, schema); err != nil {
			return nil, err
		}
		ok, err := verifier.Verify(proofs[i], nonces[i])
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("benchmark proof %d did not verify", i)
		}
	}
	total = time.Since(start)
	results = append(results, Result{
		Operation:  "verify",
		Iterations: cfg.Iterations,
		Total:      total,
		PerOp:      total / time.Duration(cfg.Iterations),
	})

	return results, nil
}
