// Command credgen is a utility for exercising the anonymous-credentials
// engine from the command line.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/kdenhartog/indy-crypto/cl"
)

// Command represents a subcommand
type Command struct {
	Name        string
	Description string
	Execute     func(args []string) error
}

func main() {
	commands := []Command{
		{
			Name:        "demo",
			Description: "Run a full issue/prove/verify round trip",
			Execute:     cmdDemo,
		},
		{
			Name:        "inspect-key",
			Description: "Parse a serialized issuer public key",
			Execute:     cmdInspectKey,
		},
	}

	if len(os.Args) < 2 {
		showHelp(commands)
		os.Exit(1)
	}

	for _, cmd := range commands {
		if cmd.Name == os.Args[1] {
			if err := cmd.Execute(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
	showHelp(commands)
	os.Exit(1)
}

func showHelp(commands []Command) {
	fmt.Println("Usage: credgen <command> [options]")
	fmt.Println("Commands:")
	for _, cmd := range commands {
		fmt.Printf("  %-12s %s\n", cmd.Name, cmd.Description)
	}
}

func cmdDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	attrs := fs.String("attrs", "name=alice,age=28", "Comma-separated attr=decimalValue pairs")
	reveal := fs.String("reveal", "name", "Comma-separated attributes to reveal")
	predicate := fs.String("predicate", "age>=18", "GE predicate of the form attr>=threshold (empty to skip)")
	keyOut := fs.String("pubkey-out", "", "Write the serialized issuer public key to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	schemaBuilder := cl.NewClaimSchemaBuilder()
	valuesBuilder := cl.NewClaimValuesBuilder()
	for _, pairStr := range strings.Split(*attrs, ",") {
		name, value, ok := strings.Cut(pairStr, "=")
		if !ok {
			return fmt.Errorf("malformed attribute %q", pairStr)
		}
		// Non-numeric values are carried as their decimal hash would be in a
		// real deployment; for the demo we fall back to the byte encoding.
		if _, isNum := new(big.Int).SetString(value, 10); !isNum {
			value = decimalOfString(value)
		}
		if err := schemaBuilder.AddAttr(name); err != nil {
			return err
		}
		if err := valuesBuilder.AddValue(name, value); err != nil {
			return err
		}
	}
	schema, err := schemaBuilder.Finalize()
	if err != nil {
		return err
	}
	values, err := valuesBuilder.Finalize()
	if err != nil {
		return err
	}

	fmt.Println("Generating issuer keys (this takes a while)...")
	pub, priv, err := cl.NewKeys(schema, false)
	if err != nil {
		return err
	}

	if *keyOut != "" {
		if err := os.WriteFile(*keyOut, cl.SerializeIssuerPublicKey(pub), 0o644); err != nil {
			return err
		}
		fmt.Printf("Issuer public key written to %s\n", *keyOut)
	}

	ms, err := cl.NewMasterSecret()
	if err != nil {
		return err
	}
	blindedMS, blindingData, err := cl.BlindMasterSecret(pub, ms)
	if err != nil {
		return err
	}
	sig, err := cl.SignClaim("credgen_demo_prover", blindedMS, values, pub, priv, 0, nil, nil)
	if err != nil {
		return err
	}
	if err := cl.ProcessClaimSignature(sig, blindingData, values, pub, nil); err != nil {
		return err
	}
	fmt.Println("Claim issued and processed.")

	reqBuilder := cl.NewSubProofRequestBuilder()
	for _, name := range strings.Split(*reveal, ",") {
		if name == "" {
			continue
		}
		if err := reqBuilder.AddRevealedAttr(name); err != nil {
			return err
		}
	}
	if *predicate != "" {
		attr, threshold, ok := strings.Cut(*predicate, ">=")
		if !ok {
			return fmt.Errorf("malformed predicate %q", *predicate)
		}
		n, isNum := parseInt64(threshold)
		if !isNum {
			return fmt.Errorf("predicate threshold %q is not a number", threshold)
		}
		pred, err := cl.NewPredicate(attr, "GE", n)
		if err != nil {
			return err
		}
		if err := reqBuilder.AddPredicate(pred); err != nil {
			return err
		}
	}
	req, err := reqBuilder.Finalize()
	if err != nil {
		return err
	}

	nonce, err := cl.NewNonce()
	if err != nil {
		return err
	}
	builder := cl.NewProofBuilder()
	if err := builder.AddSubProofRequest("credgen_key", sig, values, pub, nil, req, schema); err != nil {
		return err
	}
	proof, err := builder.Finalize(nonce, ms)
	if err != nil {
		return err
	}

	verifier := cl.NewProofVerifier()
	if err := verifier.AddSubProofRequest("credgen_key", pub, nil, req, schema); err != nil {
		return err
	}
	ok, err := verifier.Verify(proof, nonce)
	if err != nil {
		return err
	}
	fmt.Printf("Proof verified: %v\n", ok)
	return nil
}

func cmdInspectKey(args []string) error {
	fs := flag.NewFlagSet("inspect-key", flag.ExitOnError)
	in := fs.String("in", "", "Path to a serialized issuer public key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("-in is required")
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	pub, err := cl.DeserializeIssuerPublicKey(data)
	if err != nil {
		return err
	}
	fmt.Printf("Attributes: %s\n", strings.Join(pub.Primary.Attrs, ", "))
	fmt.Printf("Modulus bits: %d\n", pub.Primary.N.BitLen())
	fmt.Printf("Revocation support: %v\n", pub.Revocation != nil)
	fmt.Printf("Modulus (base64, truncated): %.44s...\n",
		base64.StdEncoding.EncodeToString(pub.Primary.N.Bytes()))
	return nil
}

// parseInt64 parses a non-negative decimal int64.
func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil && n >= 0
}

// decimalOfString maps an arbitrary string to the decimal encoding of its
// UTF-8 bytes so it can be carried as a claim value.
func decimalOfString(s string) string {
	return new(big.Int).SetBytes([]byte(s)).String()
}
