package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/drfirst/go-clinidoc/internal/certificate"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/fhir/mapper"
	"github.com/drfirst/go-clinidoc/internal/layout"
	"github.com/drfirst/go-clinidoc/internal/note"
	"github.com/drfirst/go-clinidoc/internal/score"
)

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <calculator> [key=value ...]",
		Short: "Run a clinical calculator",
		Long: "Run a clinical calculator. Inputs come from key=value arguments or, " +
			"with -f, from a JSON object. Use \"score list\" for the catalog.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if id == "list" {
				return printJSON(cmd, score.List())
			}
			if !score.Known(id) {
				return fmt.Errorf("unknown calculator %q", id)
			}

			in := score.Input{}
			if f, _ := cmd.Flags().GetString("file"); f != "" {
				if err := readInput(cmd, &in); err != nil {
					return err
				}
			}
			for _, kv := range args[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", kv)
				}
				in[k] = parseValue(v)
			}

			res := score.Calculate(id, in)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %g\n%s\n", res.Calculator, res.Score, res.Interpretation)
			return nil
		},
	}
	addFileFlag(cmd)
	cmd.Flags().Bool("json", false, "print the result as JSON")
	return cmd
}

// parseValue keeps numbers as strings; the score input accepts numeric
// strings. Only booleans are converted.
func parseValue(v string) any {
	switch strings.ToLower(v) {
	case "true", "sim", "yes":
		return true
	case "false", "nao", "não", "no":
		return false
	}
	return v
}

func noteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Compose a clinical note from its JSON form state",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := note.DefaultSoapState()
			if err := readInput(cmd, state); err != nil {
				return err
			}
			if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
				state.SwitchMode(note.Mode(mode))
			}
			fmt.Fprintln(cmd.OutOrStdout(), note.Compose(state))
			return nil
		},
	}
	addFileFlag(cmd)
	cmd.Flags().String("mode", "", "override the note mode (standard or trauma)")
	return cmd
}

func layoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Lay out a prescription into print sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			var state prescription.State
			if err := readInput(cmd, &state); err != nil {
				return err
			}

			var opts layout.JobOptions
			opts.Copies, _ = cmd.Flags().GetInt("copies")
			opts.MedicationsPerPage, _ = cmd.Flags().GetInt("per-page")
			if err := opts.Validate(); err != nil {
				return err
			}
			job := layout.BuildPrintJob(&state, opts)

			if summary, _ := cmd.Flags().GetBool("summary"); !summary {
				return printJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "copies: %d, pages per copy: %d\n", job.Copies, job.PagesPerCopy)
			for _, s := range job.Sheets {
				fmt.Fprintf(out, "copy %d page %d/%d %s\n", s.Copy, s.Number, s.Total, s.Kind)
			}
			return nil
		},
	}
	addFileFlag(cmd)
	cmd.Flags().Int("copies", 1, "number of copies")
	cmd.Flags().Int("per-page", layout.MedicationsPerPage, "medications per sheet")
	cmd.Flags().Bool("summary", false, "print a sheet summary instead of the job JSON")
	return cmd
}

func certificateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certificate",
		Short: "Render the certificate configured in a prescription",
		RunE: func(cmd *cobra.Command, args []string) error {
			var state prescription.State
			if err := readInput(cmd, &state); err != nil {
				return err
			}
			var issuer certificate.Issuer
			issuer.Name, _ = cmd.Flags().GetString("doctor")
			issuer.License, _ = cmd.Flags().GetString("license")

			doc, err := certificate.Render(&state, issuer)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), doc.Text())
			return nil
		},
	}
	addFileFlag(cmd)
	cmd.Flags().String("doctor", "", "signing doctor")
	cmd.Flags().String("license", "", "signing doctor's license (CRM)")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "List prescription warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var state prescription.State
			if err := readInput(cmd, &state); err != nil {
				return err
			}
			warnings := prescription.Validate(&state)
			sort.SliceStable(warnings, func(i, j int) bool { return warnings[i].Index < warnings[j].Index })
			for _, w := range warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %s: %s\n", w.Index, w.Code, w.Message)
			}
			if len(warnings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
			}
			return nil
		},
	}
	addFileFlag(cmd)
	return cmd
}

func fhirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fhir",
		Short: "Export a prescription as a FHIR R5 bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			var state prescription.State
			if err := readInput(cmd, &state); err != nil {
				return err
			}
			in := mapper.Input{State: &state, Now: time.Now()}
			in.Prescriber.Name, _ = cmd.Flags().GetString("doctor")
			in.Prescriber.License, _ = cmd.Flags().GetString("license")

			bundle, err := mapper.New().ToBundle(in)
			if err != nil {
				return err
			}
			return printJSON(cmd, bundle)
		},
	}
	addFileFlag(cmd)
	cmd.Flags().String("doctor", "", "prescriber name")
	cmd.Flags().String("license", "", "prescriber license (CRM)")
	return cmd
}
