package main

import (
	"os"
	"strings"

	"ocr-verifier/internal/cli"
	"ocr-verifier/internal/model"
)

func isRegionID(s string) bool {
	_, err := model.ParseCompositeID(strings.TrimSpace(s))
	return err == nil
}

func rewriteDirectRegionLookupArgs(argv []string) []string {
	// Convenience: `verifier <region-id>` works like `verifier regions show <region-id>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so argv is rewritten before
	// parsing. Persistent flags may come first (e.g. `verifier --url ... page01_3`), so the
	// first positional token is searched for, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--url":       true,
		"--dir":       true,
		"--format":    true,
		"--timeout":   true,
		"--log-file":  true,
		"--log-level": true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
		"--yes":    true,
		"-y":       true,
	}

	insert := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "regions", "show")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			// The subcommand must come before "--" or cobra treats it as an argument.
			if i+1 < len(argv) && isRegionID(argv[i+1]) {
				return insert(i)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++ // skip value if present
			}
			continue
		}

		// First positional token.
		if isRegionID(a) {
			return insert(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectRegionLookupArgs(os.Args)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
