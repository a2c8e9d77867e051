// Package cli is the cvbuilder command line: session, drafts and the remote
// flows against the same local store the form server uses.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cv-builder/internal/adapter/terminal"
	"cv-builder/internal/app"
	"cv-builder/internal/config"
	"cv-builder/internal/logging"
)

type globalOptions struct {
	configPath  string
	storeDriver string
	storePath   string
	apiURL      string
	verbose     bool
}

// state is shared by the commands of one invocation.
type state struct {
	opts globalOptions
	app  *app.App
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:   "cvbuilder",
		Short: "Build, enhance and export your CV from the terminal",
		Long: `cvbuilder edits the same locally stored CV draft as the form server.
Drafts are kept per signed-in user and removed at logout.`,
		Example: `  cvbuilder login --token $TOKEN --user-id 42
  cvbuilder draft import cv.yml
  cvbuilder enhance summary
  cvbuilder export pdf -o ~/Documents`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&st.opts.configPath, "config", "c", defaultConfigPath(), "config file")
	pf.StringVar(&st.opts.storeDriver, "store", "", "store driver override (sqlite, postgres, memory)")
	pf.StringVar(&st.opts.storePath, "store-path", "", "sqlite store file override")
	pf.StringVar(&st.opts.apiURL, "api", "", "CV builder API base URL override")
	pf.BoolVarP(&st.opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newLoginCmd(st),
		newLogoutCmd(st),
		newWhoamiCmd(st),
		newDraftCmd(st),
		newEnhanceCmd(st),
		newPreviewCmd(st),
		newExportCmd(st),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func defaultConfigPath() string {
	if p := os.Getenv("CVBUILDER_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "cvbuilder.yml"
	}
	return dir + string(os.PathSeparator) + "cvbuilder" + string(os.PathSeparator) + "config.yml"
}

// withApp opens the application around fn and closes it afterwards, so a
// pending draft is written even when fn fails.
func (st *state) withApp(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := st.open(cmd); err != nil {
			return err
		}
		defer st.close()
		return fn(cmd, args)
	}
}

func (st *state) open(cmd *cobra.Command) error {
	cfg, err := config.Load(st.opts.configPath)
	if err != nil {
		return err
	}
	if st.opts.storeDriver != "" {
		cfg.Store.Driver = st.opts.storeDriver
	}
	if st.opts.storePath != "" {
		cfg.Store.Path = st.opts.storePath
	}
	if st.opts.apiURL != "" {
		cfg.API.BaseURL = st.opts.apiURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level := "warn"
	if st.opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, true)
	if err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	a, err := app.Open(context.Background(), cfg, logger,
		terminal.NewNotifier(errOut),
		terminal.NewSpinner(errOut, isTerminal(errOut)))
	if err != nil {
		return err
	}
	st.app = a
	return nil
}

func (st *state) close() {
	if st.app != nil {
		st.app.Close()
		st.app = nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
