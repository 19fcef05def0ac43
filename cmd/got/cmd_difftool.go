package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/odvcencio/gotdiff/pkg/backend/gitcli"
	"github.com/odvcencio/gotdiff/pkg/backend/native"
	"github.com/odvcencio/gotdiff/pkg/dirdiff"
	"github.com/odvcencio/gotdiff/pkg/logging"
	"github.com/odvcencio/gotdiff/pkg/repo"
)

const builtinTool = "builtin"

// difftoolBackend pairs the change source and side-index store of one
// repository flavour with the config that applies to it.
type difftoolBackend struct {
	name   string
	source dirdiff.ChangeSource
	store  dirdiff.IndexStore
	config *repo.Config
}

func newDifftoolCmd() *cobra.Command {
	var (
		dirDiff  bool
		cached   bool
		extcmd   string
		tool     string
		forceGit bool
		gitBin   string
	)

	cmd := &cobra.Command{
		Use:   "difftool -d [--cached] [<rev> [<rev>]] [-- <path>...]",
		Short: "Compare two snapshots as directories in an external diff tool",
		Long: `Materialize the left and right side of a diff as two directory trees and
open them in a diff tool. Modified working-tree files are copied into the
right tree, so edits made in the tool are not written back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dirDiff {
				return errors.New("difftool: only directory mode is supported, pass -d/--dir-diff")
			}
			ctx := cmd.Context()
			log := logging.Get("difftool")

			diffArgs := difftoolArgs(args, cmd.ArgsLenAtDash(), cached)

			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			b, err := openDifftoolBackend(ctx, backendChoice(forceGit), wd, gitBin, log)
			if err != nil {
				return err
			}

			settings, err := loadSettings(b.config)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tool") {
				settings.Tool = tool
			}
			if cmd.Flags().Changed("extcmd") {
				settings.ExtCmd = extcmd
			}

			launcher, err := selectLauncher(settings, cmd)
			if err != nil {
				return err
			}

			s := dirdiff.NewSession(b.source, b.store, log.With().Str("backend", b.name).Logger())
			s.TmpDir = settings.TmpDir

			done := logging.OperationStart(log, "difftool")
			defer done()
			err = s.Run(ctx, diffArgs, launcher)
			if errors.Is(err, dirdiff.ErrNothingToDiff) {
				log.Info().Msg("no differences")
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&dirDiff, "dir-diff", "d", false, "compare whole directory trees")
	cmd.Flags().BoolVar(&cached, "cached", false, "compare the index against a revision (default HEAD)")
	cmd.Flags().BoolVar(&cached, "staged", false, "synonym for --cached")
	cmd.Flags().StringVarP(&extcmd, "extcmd", "x", "", "command to run; the two directories are appended as arguments")
	cmd.Flags().StringVarP(&tool, "tool", "t", "", "configured or known tool name, or \"builtin\"")
	cmd.Flags().BoolVar(&forceGit, "git", false, "read the repository with the git executable")
	cmd.Flags().StringVar(&gitBin, "git-bin", "", "git executable for --git (default git from PATH)")
	return cmd
}

// difftoolArgs rebuilds the argument list cobra consumed: options it owns
// are re-emitted and the "--" separator is restored before pathspecs.
func difftoolArgs(args []string, dash int, cached bool) []string {
	var out []string
	if cached {
		out = append(out, "--cached")
	}
	if dash < 0 {
		return append(out, args...)
	}
	out = append(out, args[:dash]...)
	out = append(out, "--")
	return append(out, args[dash:]...)
}

// backendChoice is "git" with --git, else GOT_DIFFTOOL_BACKEND, else
// "auto".
func backendChoice(forceGit bool) string {
	if forceGit {
		return "git"
	}
	if v := os.Getenv(settingsEnvPrefix + "BACKEND"); v != "" {
		return v
	}
	return "auto"
}

// openDifftoolBackend opens the repository containing dir. "auto" prefers
// a got repository and falls back to git.
func openDifftoolBackend(ctx context.Context, choice, dir, gitBin string, log zerolog.Logger) (*difftoolBackend, error) {
	switch strings.ToLower(choice) {
	case "", "auto":
		b, err := openNativeBackend(dir, log)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, repo.ErrNotRepository) {
			return nil, err
		}
		log.Debug().Msg("no got repository, trying git")
		return openGitBackend(ctx, dir, gitBin, log)
	case "got":
		return openNativeBackend(dir, log)
	case "git":
		return openGitBackend(ctx, dir, gitBin, log)
	default:
		return nil, fmt.Errorf("unknown backend %q (want auto, got or git)", choice)
	}
}

func openNativeBackend(dir string, log zerolog.Logger) (*difftoolBackend, error) {
	r, err := repo.Open(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return nil, err
	}
	nb := native.New(r, log)
	return &difftoolBackend{name: "got", source: nb, store: nb, config: cfg}, nil
}

func openGitBackend(ctx context.Context, dir, gitBin string, log zerolog.Logger) (*difftoolBackend, error) {
	gb, err := gitcli.Open(ctx, gitcli.NewExecRunner(gitBin), dir, log)
	if err != nil {
		return nil, err
	}
	return &difftoolBackend{name: "git", source: gb, store: gb}, nil
}

// selectLauncher resolves the tool to run. An external command wins over
// a tool name; names are looked up in the configured tools, then the
// known tools.
func selectLauncher(s *difftoolSettings, cmd *cobra.Command) (dirdiff.Launcher, error) {
	if strings.TrimSpace(s.ExtCmd) != "" {
		return dirdiff.CommandLauncher{
			Command:    s.ExtCmd,
			Positional: true,
			Stdin:      cmd.InOrStdin(),
			Stdout:     cmd.OutOrStdout(),
			Stderr:     cmd.ErrOrStderr(),
		}, nil
	}

	name := strings.TrimSpace(s.Tool)
	if name == "" || name == builtinTool {
		return dirdiff.TreeDiffLauncher{Out: cmd.OutOrStdout()}, nil
	}
	command, ok := s.Tools[name]
	if !ok {
		command, ok = dirdiff.KnownToolCommand(name)
	}
	if !ok {
		return nil, fmt.Errorf("unknown diff tool %q (known: %s, %s)", name, builtinTool, strings.Join(dirdiff.KnownTools(), ", "))
	}
	return dirdiff.CommandLauncher{
		Command: command,
		Stdin:   cmd.InOrStdin(),
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
	}, nil
}
