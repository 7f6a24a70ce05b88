// Command goquill runs and inspects compiled script images for the
// embeddable runtime in internal/runtime.
package main

import (
	"fmt"
	"os"

	"github.com/goquill/goquill/cmd/goquill/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
