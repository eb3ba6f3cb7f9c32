// TPA Check CLI
// Loads a token-configuration file, builds an SA directly from a literal
// seed chain (no tracker is involved), and replays a sequence of ESP tokens
// against it — a small harness for exercising the verifier end to end
// without a live HIP stack.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hip-tpa/tpacore/pkg/satable"
	"github.com/hip-tpa/tpacore/pkg/tpaconfig"
	"github.com/hip-tpa/tpacore/pkg/tpahash"
	"github.com/hip-tpa/tpacore/pkg/tpametrics"
	"github.com/hip-tpa/tpacore/pkg/tpawire"
	"github.com/hip-tpa/tpacore/pkg/verifier"
)

func main() {
	configPath := flag.String("config", "", "path to a token-config YAML file (defaults applied if omitted)")
	seedHex := flag.String("seed", "tpacheck-seed", "seed string for the demo hash chain")
	chainLen := flag.Int("chain-len", 8, "number of hash-chain elements to build")
	flag.Parse()

	cfg := tpaconfig.Defaults()
	if *configPath != "" {
		loaded, err := tpaconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.TokenConfig.Transform = tpawire.TransformPlain
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}

	mode := tpahash.ModeSHA256
	if cfg.Verifier.DigestMode == "keccak256" {
		mode = tpahash.ModeKeccak256
	}
	hashLength := cfg.TokenConfig.HashLength

	chain := buildChain(mode, []byte(*seedHex), *chainLen, hashLength)
	anchor := chain[len(chain)-1]

	sa := satable.New(tpawire.TransformPlain, 1, hashLength, 0)
	sa.ActiveAnchors[0] = anchor
	sa.FirstActiveAnchors[0] = anchor

	v := verifier.New(mode, cfg.TokenConfig.WindowSize)
	reg := prometheus.NewRegistry()
	v.Metrics = tpametrics.New(reg)

	for i := 1; i <= *chainLen; i++ {
		token := chain[*chainLen-i]
		view, err := tpawire.NewEspView(token, hashLength)
		if err != nil {
			fmt.Fprintf(os.Stderr, "esp_seq=%d: build view: %v\n", i, err)
			os.Exit(1)
		}
		if err := v.VerifyESP(sa, view, uint32(i), nil); err != nil {
			fmt.Fprintf(os.Stderr, "esp_seq=%d: REJECTED: %v\n", i, err)
			continue
		}
		fmt.Printf("esp_seq=%d: OK, seq_no=%d, active_anchor=%x\n", i, sa.SeqNo, sa.ActiveAnchors[0])
	}

	printMetricsSummary(reg)
}

// printMetricsSummary reports the counters tpametrics collected during the
// replay above: the error-taxonomy breakdown and the chain-walk-depth
// histogram's sample count.
func printMetricsSummary(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gather metrics: %v\n", err)
		return
	}
	fmt.Println("metrics:")
	for _, family := range families {
		for _, metric := range family.Metric {
			switch {
			case metric.Counter != nil:
				fmt.Printf("  %s%v = %g\n", family.GetName(), metric.Label, metric.Counter.GetValue())
			case metric.Histogram != nil:
				fmt.Printf("  %s: count=%d sum=%g\n", family.GetName(), metric.Histogram.GetSampleCount(), metric.Histogram.GetSampleSum())
			}
		}
	}
}

// buildChain returns [x0, x1=H(x0), ..., xn] of length n+1, where x0 is
// the seed digested to hashLength bytes.
func buildChain(mode tpahash.Mode, seed []byte, n, hashLength int) [][]byte {
	chain := make([][]byte, n+1)
	chain[0] = tpahash.Digest(mode, seed, hashLength)
	for i := 1; i <= n; i++ {
		chain[i] = tpahash.Digest(mode, chain[i-1], hashLength)
	}
	return chain
}
