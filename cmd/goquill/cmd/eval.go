package cmd

import (
	"fmt"

	"github.com/goquill/goquill/internal/value"
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval <script.gqc>",
	Short: "Run a compiled script image and print its completion value",
	Long: `Eval is run plus one extra step: it prints the toplevel function's
completion value to stdout, the way a REPL echoes the last expression's
result. Use run instead when a script's effect is console output, not a
return value.

Example:
  goquill eval expr.gqc`,
	Args: cobra.ExactArgs(1),
	RunE: evalScript,
}

func init() {
	rootCmd.AddCommand(evalCmd)
}

func evalScript(_ *cobra.Command, args []string) error {
	_, realm, err := newRealm()
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	s, err := loadScript(realm, args[0])
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}

	result, err := realm.Run(s)
	if err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}

	str, err := realm.IP.ToStringValue(result)
	if err != nil {
		return fmt.Errorf("stringifying result: %w", err)
	}
	fmt.Println(displayText(str))
	return nil
}

func displayText(v value.Value) string {
	if v.Tag() == value.IndexString {
		return fmt.Sprint(v.AsIndexStr())
	}
	if js, ok := v.Handle().Thing().(*value.JSString); ok {
		return js.String()
	}
	return ""
}
