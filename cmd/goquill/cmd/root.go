package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information, overridable by build flags.
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "goquill",
	Short: "goquill runs and inspects compiled script images",
	Long: `goquill is the command-line front end for the goquill embeddable
ECMAScript core: a value representation and garbage collector, an object
model, lexical environments, and a bytecode interpreter, with no source-text
parser of its own. Its subcommands operate on already-compiled .gqc script
images, the way a host application loads and runs one through the
internal/runtime package.`,
	Version: Version,
}

// Execute runs the goquill CLI's root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a runtime config YAML file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

var (
	configPath string
	verbose    bool
)
