package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script.gqc>",
	Short: "Run a compiled script image to completion",
	Long: `Run loads a compiled script image, executes its toplevel function,
and drains any microtasks (promise reactions, resumed async functions) it
schedules along the way.

Example:
  goquill run hello.gqc`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScript(_ *cobra.Command, args []string) error {
	_, realm, err := newRealm()
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	s, err := loadScript(realm, args[0])
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "running %s (%d functions, %d constants)\n",
			s.SourceName, len(s.Functions), len(s.Constants))
	}

	if _, err := realm.Run(s); err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return nil
}
