package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"deskshell/internal/config"
	"deskshell/internal/logging"
)

// state is filled by the root PersistentPreRunE and read by subcommands.
type state struct {
	cfgPath   string
	logLevel  string
	logFormat string
	dev       bool
	logOut    io.Writer

	cfg config.Config
	log zerolog.Logger
}

// load resolves config from file, env and flags, then builds the logger.
func (s *state) load(cmd *cobra.Command) error {
	cfg, err := config.Resolve(s.cfgPath, os.Getenv)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = s.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = s.logFormat
	}
	if s.dev {
		cfg.Mode = config.ModeDevelopment
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, s.logOut)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.log = log
	return nil
}

// buildRootCmd constructs the Cobra command tree wired to the fn* actions.
func buildRootCmd(out, logOut io.Writer) *cobra.Command {
	st := &state{logOut: logOut}
	root := &cobra.Command{
		Use:           "deskshell",
		Short:         "Desktop shell that runs a local Python web UI in a window",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "completion" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
				return nil
			}
			return st.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnRunApp(cmd.Context(), st.cfg, st.log)
		},
	}
	root.SetOut(out)
	root.SetErr(logOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&st.cfgPath, "config", "c", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&st.logLevel, "log-level", "info", "Log level: debug|info|warn|error (defaults DESKSHELL_LOG_LEVEL or info)")
	pf.StringVar(&st.logFormat, "log-format", "console", "Log format: console|json")
	pf.BoolVar(&st.dev, "dev", false, "Development mode: run the entry script from the current directory (or DESKSHELL_ENV=development)")

	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Start the backend and open the window (default)",
		Example: "  deskshell run\n  deskshell --dev run\n  deskshell -c deskshell.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnRunApp(cmd.Context(), st.cfg, st.log)
		},
	}
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Print the interpreter that would run the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnProbe(cmd.Context(), st.cfg, st.log, cmd.OutOrStdout())
		},
	}
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check interpreter, required modules, entry script and ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnDoctor(cmd.Context(), st.cfg, st.log, cmd.OutOrStdout())
		},
	}
	portCmd := &cobra.Command{
		Use:   "port",
		Short: "Print the first free backend URL in the configured range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnPort(cmd.Context(), st.cfg, st.log, cmd.OutOrStdout())
		},
	}
	root.AddCommand(runCmd, probeCmd, doctorCmd, portCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout()) }})
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(completionCmd)

	return root
}
