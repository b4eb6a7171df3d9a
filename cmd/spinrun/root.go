package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhubert/spinrun/config"
	"github.com/zhubert/spinrun/exec"
	"github.com/zhubert/spinrun/interactive"
	"github.com/zhubert/spinrun/logger"
	"github.com/zhubert/spinrun/paths"
)

// Version is set at build time.
var Version = "dev"

// app carries what the commands share. Tests fill in the collaborators.
type app struct {
	props    *config.Properties
	spawner  exec.Spawner
	selector interactive.Selector

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	debug      bool
}

func newApp() *app {
	return &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

// Command group IDs.
const (
	GroupRun    = "run"
	GroupConfig = "config"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:     "spinrun",
		Short:   "Run the Spin model checker",
		Version: Version,
		Long: `spinrun drives the Spin model checker on a Promela model.

It checks syntax, runs random and interactive simulations, and builds and
runs the pan verifier, formatting Spin's output for the terminal.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "property file (default "+defaultConfigHint()+")")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log verifier output at debug level")

	root.AddGroup(
		&cobra.Group{ID: GroupRun, Title: "Running Spin:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration:"},
	)
	root.SetHelpCommandGroupID(GroupConfig)
	root.SetCompletionCommandGroupID(GroupConfig)

	root.AddCommand(
		newCheckCmd(a),
		newRandomCmd(a),
		newInteractiveCmd(a),
		newVerifyCmd(a),
		newRunCmd(a),
		newDoctorCmd(a),
		newConfigCmd(a),
	)
	return root
}

func defaultConfigHint() string {
	return "~/.spinrun/" + paths.PropertiesFileName
}

// setup initializes logging and loads the properties once per invocation.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	logger.SetDebug(a.debug)
	if path, err := logger.DefaultLogPath(); err == nil {
		if err := logger.Init(path); err != nil {
			fmt.Fprintf(a.stderr, "Warning: %v\n", err)
		}
	}

	if a.props != nil {
		return nil
	}
	var err error
	if a.configPath != "" {
		a.props, err = config.Load(a.configPath)
	} else {
		a.props, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("failed to load properties: %w", err)
	}
	logger.WithComponent("cli").Debug("properties loaded", "path", a.props.FilePath(), "command", cmd.Name())
	return nil
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	a := newApp()
	defer logger.Close()
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		// Already printed by cobra
		return 1
	}
	return 0
}
