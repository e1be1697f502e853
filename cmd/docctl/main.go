// Package main provides docctl, the offline companion CLI: document
// builders that run without the API, plus broker and database operations.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docctl",
		Short:        "Clinical documentation toolkit",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", os.Getenv("CLINIDOC_CONFIG_FILE"), "config file for broker and database commands")

	root.AddCommand(scoreCmd())
	root.AddCommand(noteCmd())
	root.AddCommand(layoutCmd())
	root.AddCommand(certificateCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(fhirCmd())
	root.AddCommand(topicsCmd())
	root.AddCommand(migrateCmd())
	return root
}

// readInput decodes JSON from the -f file, or stdin when the flag is empty
// or "-".
func readInput(cmd *cobra.Command, v any) error {
	path, _ := cmd.Flags().GetString("file")

	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addFileFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "JSON input file (default stdin)")
}
