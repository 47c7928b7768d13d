// Command newsrank serves and inspects hybrid news retrieval plans.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
