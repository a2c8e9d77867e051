package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cv-builder/internal/model"
)

var errSignInFirst = errors.New("not signed in: run cvbuilder login first")

func newDraftCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect, import or remove the stored draft",
	}
	cmd.AddCommand(newDraftShowCmd(st), newDraftImportCmd(st), newDraftClearCmd(st), newDraftClearAllCmd(st))
	return cmd
}

func newDraftShowCmd(st *state) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the signed-in user's draft",
		RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
			uid := st.app.Sessions.UserID()
			if uid == "" {
				return errSignInFirst
			}
			rec, ok := st.app.Drafts.Restore(cmd.Context(), uid)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved draft.")
				return nil
			}
			return writeRecord(cmd, *rec, format)
		}),
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml, json)")
	return cmd
}

func writeRecord(cmd *cobra.Command, rec model.FormRecord, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rec)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func newDraftImportCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the draft with a YAML or JSON record",
		Args:  cobra.ExactArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string) error {
			if st.app.Sessions.UserID() == "" {
				return errSignInFirst
			}
			rec, err := readRecord(args[0])
			if err != nil {
				return err
			}
			if err := model.Validate(rec); err != nil {
				return err
			}
			st.app.Builder.Model().Replay(rec)
			st.app.Builder.SaveDraft()
			fmt.Fprintf(cmd.OutOrStdout(), "Imported draft from %s\n", args[0])
			return nil
		}),
	}
}

// readRecord decodes a record file. JSON is read by the YAML decoder too.
func readRecord(path string) (model.FormRecord, error) {
	var rec model.FormRecord
	b, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("read draft file: %w", err)
	}
	if err := yaml.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("parse draft file %s: %w", path, err)
	}
	rec.Normalize()
	return rec, nil
}

func newDraftClearCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the signed-in user's draft",
		RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
			st.app.Builder.ClearDraft(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Draft cleared.")
			return nil
		}),
	}
}

func newDraftClearAllCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-all",
		Short: "Delete the drafts of every user on this profile",
		RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
			st.app.Drafts.ClearAll(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "All drafts cleared.")
			return nil
		}),
	}
}
