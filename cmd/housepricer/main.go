// Command housepricer trains the house price regressors, reports their
// diagnostics and writes Kaggle submissions.
package main

import (
	"os"

	"github.com/YuminosukeSato/housepricer/cmd/housepricer/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
