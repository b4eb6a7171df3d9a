package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zhubert/spinrun/config"
	"github.com/zhubert/spinrun/exec"
	"github.com/zhubert/spinrun/filter"
	"github.com/zhubert/spinrun/interactive"
	"github.com/zhubert/spinrun/selector"
	"github.com/zhubert/spinrun/sink"
	"github.com/zhubert/spinrun/supervisor"
)

var errInterrupted = errors.New("interrupted")

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "check FILE",
		Short:   "Check the syntax of a Promela model",
		GroupID: GroupRun,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := modelFile(args[0])
			if err != nil {
				return err
			}
			return a.execute(cmd.Context(), nil, a.spinRequest(model, supervisor.Plain, sink.Output,
				a.props.String(config.KeyCheckOptions)))
		},
	}
}

func newRandomCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "random FILE",
		Short:   "Run a random simulation",
		GroupID: GroupRun,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := modelFile(args[0])
			if err != nil {
				return err
			}
			return a.execute(cmd.Context(), nil, a.spinRequest(model, supervisor.Simulation, sink.Output,
				a.props.String(config.KeyCommonOptions), a.props.String(config.KeyRandomOptions)))
		},
	}
}

func newInteractiveCmd(a *app) *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "interactive FILE",
		Short: "Run an interactive simulation, choosing each transition",
		Long: `Run an interactive simulation. Whenever more than one transition is
executable Spin asks which one to take; spinrun shows the current variable
values and the candidates and sends back your choice.

With --script the choices are taken from a comma separated list instead
(1-based; 0 quits). The simulation quits when the list runs out.`,
		GroupID: GroupRun,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := modelFile(args[0])
			if err != nil {
				return err
			}
			sel, err := a.interactiveSelector(script)
			if err != nil {
				return err
			}
			return a.execute(cmd.Context(), sel, a.spinRequest(model, supervisor.Interactive, sink.Output,
				a.props.String(config.KeyCommonOptions), a.props.String(config.KeyInteractiveOptions)))
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "comma separated choices, e.g. 1,2,0")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE",
		Short: "Generate, compile and run the pan verifier",
		Long: `Run the verification pipeline in the model's directory:

  spin VERIFY_OPTIONS FILE
  C_COMPILER C_COMPILER_OPTIONS
  ./PAN PAN_OPTIONS

Each step must succeed before the next one starts.`,
		GroupID: GroupRun,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := modelFile(args[0])
			if err != nil {
				return err
			}
			return a.execute(cmd.Context(), nil, a.verifyRequests(model)...)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var program, params, mode string
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run an arbitrary program on a model with a chosen output filter",
		Example: `  spinrun run peterson.pml --params "-t -p"
  spinrun run peterson.pml --program ./pan --params "-a" --mode verification`,
		GroupID: GroupRun,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := modelFile(args[0])
			if err != nil {
				return err
			}
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			if program == "" {
				program = a.props.String(config.KeySpin)
			}
			req := supervisor.Request{
				Program:    program,
				Params:     joinParams(params, a.quoted(filepath.Base(model))),
				Mode:       m,
				Output:     sink.Output,
				SourceFile: model,
			}
			var sel interactive.Selector
			if m == supervisor.Interactive {
				if sel, err = a.interactiveSelector(""); err != nil {
					return err
				}
			}
			return a.execute(cmd.Context(), sel, req)
		},
	}
	cmd.Flags().StringVar(&program, "program", "", "program to run (default SPIN)")
	cmd.Flags().StringVar(&params, "params", "", "parameters placed before the model file")
	cmd.Flags().StringVar(&mode, "mode", "plain", "output handling: plain, simulation, interactive or verification")
	return cmd
}

func parseMode(s string) (supervisor.Mode, error) {
	for _, m := range []supervisor.Mode{supervisor.Plain, supervisor.Simulation, supervisor.Interactive, supervisor.Verification} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// modelFile checks that path names a readable model.
func modelFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot open model: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}

// spinRequest runs SPIN with opts followed by the model's file name.
func (a *app) spinRequest(model string, mode supervisor.Mode, out sink.ID, opts ...string) supervisor.Request {
	return supervisor.Request{
		Program:    a.props.String(config.KeySpin),
		Params:     joinParams(append(opts, a.quoted(filepath.Base(model)))...),
		Mode:       mode,
		Output:     out,
		SourceFile: model,
	}
}

func (a *app) verifyRequests(model string) []supervisor.Request {
	generate := a.spinRequest(model, supervisor.Plain, sink.Messages, a.props.String(config.KeyVerifyOptions))
	compile := supervisor.Request{
		Program:    a.props.String(config.KeyCCompiler),
		Params:     a.props.String(config.KeyCCompilerOptions),
		Mode:       supervisor.Plain,
		Output:     sink.Messages,
		SourceFile: model,
	}
	verify := supervisor.Request{
		Program:    "." + string(filepath.Separator) + a.props.String(config.KeyPan),
		Params:     a.props.String(config.KeyPanOptions),
		Mode:       supervisor.Verification,
		Output:     sink.Output,
		SourceFile: model,
	}
	return []supervisor.Request{generate, compile, verify}
}

// quoted wraps s in the configured quote when it contains a space.
func (a *app) quoted(s string) string {
	if !strings.Contains(s, " ") {
		return s
	}
	q := string(supervisor.OptionsFrom(a.props).Quote)
	return q + s + q
}

func joinParams(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func (a *app) spawnerFor() exec.Spawner {
	if a.spawner != nil {
		return a.spawner
	}
	if a.props.Bool(config.KeyUsePTY) {
		return exec.PTYSpawner{}
	}
	return exec.PipeSpawner{}
}

// interactiveSelector picks how transitions are chosen: a script, or the
// terminal UI when stdin is a terminal.
func (a *app) interactiveSelector(script string) (interactive.Selector, error) {
	if script != "" {
		return selector.ParseScript(script)
	}
	if a.selector != nil {
		return a.selector, nil
	}
	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, errors.New("interactive simulation needs a terminal; use --script to choose transitions")
	}
	return &selector.Terminal{
		In:            f,
		Out:           a.stderr,
		MenuThreshold: a.props.Int(config.KeySelectMenu),
		ButtonWidth:   a.props.Int(config.KeySelectButton) / 8,
		ListRows:      a.props.Int(config.KeySelectHeight) / 10,
	}, nil
}

// execute runs reqs one after another and stops at the first that fails.
func (a *app) execute(ctx context.Context, sel interactive.Selector, reqs ...supervisor.Request) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	q := sink.NewQueue(sink.NewTerminal(a.stdout, a.stderr), 64)
	defer q.Close()

	if sel != nil {
		inner := sel
		// Everything shown so far must be on screen before the prompt.
		sel = interactive.SelectorFunc(func(ctx context.Context, prompt string, labels []string) (int, error) {
			q.Flush()
			return inner.Select(ctx, prompt, labels)
		})
	}

	settings := filter.SettingsFrom(a.props)
	sup := supervisor.New(supervisor.Config{
		Spawner:   a.spawnerFor(),
		Sink:      q,
		Selector:  sel,
		NewFilter: func() *filter.Filter { return filter.New(settings) },
		Options:   supervisor.OptionsFrom(a.props),
	})

	for _, req := range reqs {
		outcome, err := sup.RunAndWait(ctx, req)
		switch {
		case err != nil:
			return err
		case outcome.Cancelled:
			return errInterrupted
		case outcome.Err != nil:
			return outcome.Err
		case outcome.ExitCode != 0:
			return fmt.Errorf("%s exited with status %d", outcome.Command, outcome.ExitCode)
		}
	}
	return nil
}
