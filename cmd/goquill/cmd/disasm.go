package cmd

import (
	"fmt"
	"os"

	"github.com/goquill/goquill/internal/bytecode"
	"github.com/spf13/cobra"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <script.gqc>",
	Short: "Disassemble a compiled script image",
	Long: `Disasm prints every function in a compiled script image as
human-readable bytecode, one instruction per line, alongside its constant
pool.

Example:
  goquill disasm hello.gqc`,
	Args: cobra.ExactArgs(1),
	RunE: disassembleScript,
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}

func disassembleScript(_ *cobra.Command, args []string) error {
	_, realm, err := newRealm()
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	s, err := loadScript(realm, args[0])
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}

	bytecode.NewDisassembler(s, os.Stdout).Disassemble()
	return nil
}
