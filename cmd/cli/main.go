package main

import (
	"fmt"
	"os"
)

/* webhook-inspector CLI: inspect, seed and reset the capture store from a terminal
 * Reads the same configuration as the API
 */

func main() {
	if err := newRootCmd(os.Stdout, nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
