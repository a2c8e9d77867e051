package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"cv-builder/internal/usecase"
	"cv-builder/pkg/api"
)

func newEnhanceCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Ask the server to rewrite part of the draft",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "summary",
			Short: "Rewrite the profile summary",
			RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
				return st.app.Builder.EnhanceSummary(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "skills",
			Short: "Tidy the skill list",
			RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
				return st.app.Builder.EnhanceSkills(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "experience POSITION",
			Short: "Rewrite the description of one experience (0-based)",
			Args:  cobra.ExactArgs(1),
			RunE: st.withApp(func(cmd *cobra.Command, args []string) error {
				pos, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("position must be a number: %w", err)
				}
				return st.app.Builder.EnhanceExperience(cmd.Context(), pos)
			}),
		},
	)
	return cmd
}

func newPreviewCmd(st *state) *cobra.Command {
	var (
		text bool
		pdf  bool
		out  string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the draft on the server and show it",
		RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if pdf {
				if out == "" {
					return fmt.Errorf("--pdf needs --out")
				}
				b, err := st.app.Builder.PreviewPDF(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, out, b)
			}
			mode := usecase.PreviewHTML
			if text {
				mode = usecase.PreviewText
			}
			s, err := st.app.Builder.Preview(ctx, mode)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), s)
				return nil
			}
			return writeOut(cmd, out, []byte(s))
		}),
	}
	cmd.Flags().BoolVar(&text, "text", false, "convert the preview to Markdown")
	cmd.Flags().BoolVar(&pdf, "pdf", false, "print the preview to PDF with local Chrome")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func newExportCmd(st *state) *cobra.Command {
	var (
		dir    string
		avatar string
	)
	cmd := &cobra.Command{
		Use:       "export FORMAT",
		Short:     "Export the draft as pdf or docx",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{api.FormatPDF, api.FormatDOCX},
		RunE: st.withApp(func(cmd *cobra.Command, args []string) error {
			if avatar != "" {
				b, err := os.ReadFile(avatar)
				if err != nil {
					return fmt.Errorf("read avatar: %w", err)
				}
				if err := st.app.Builder.SetAvatarFile(filepath.Base(avatar), b); err != nil {
					return err
				}
			}
			doc, err := st.app.Builder.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeOut(cmd, filepath.Join(dir, doc.FileName), doc.Data)
		}),
	}
	cmd.Flags().StringVarP(&dir, "out", "o", ".", "directory to write the file to")
	cmd.Flags().StringVar(&avatar, "avatar", "", "image to upload as avatar before exporting")
	return cmd
}

func writeOut(cmd *cobra.Command, path string, b []byte) error {
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(b))
	return nil
}
