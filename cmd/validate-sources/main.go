package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/marcelsud/webhook-inspector/sources"
)

/* validate-sources - Standalone CLI tool to validate sources.yaml
 * Usage: go run cmd/validate-sources/main.go [sources.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	sourcesFile := "sources.yaml"
	if len(os.Args) > 1 {
		sourcesFile = os.Args[1]
	}

	fmt.Printf("Validating sources file: %s\n", sourcesFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := sources.NewLoader(http.StatusOK)
	if err := loader.Load(sourcesFile); err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loaded := loader.List()
	fmt.Printf("VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d source(s):\n", len(loaded))

	for i, source := range loaded {
		fmt.Printf("\n%d. Source: %s\n", i+1, source.SourceID)
		fmt.Printf("   Capture URL: /capture/%s/...\n", source.SourceID)
		fmt.Printf("   Status code: %d\n", source.StatusCode)
		if source.Description != "" {
			fmt.Printf("   Description: %s\n", source.Description)
		}
		if _, ok := source.Secret(); ok {
			fmt.Printf("   Signing:     configured\n")
		}
	}

	fmt.Printf("\nAll sources are valid!\n")
}
