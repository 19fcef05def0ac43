package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/gotdiff/pkg/dirdiff"
	"github.com/odvcencio/gotdiff/pkg/logging"
	"github.com/odvcencio/gotdiff/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var tool string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty got repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			r, err := repo.Init(abs)
			if err != nil {
				return err
			}
			log := logging.Get("init")
			log.Debug().Str("root", r.RootDir).Msg("repository created")

			if tool != "" {
				if _, known := dirdiff.KnownToolCommand(tool); !known && tool != builtinTool {
					return fmt.Errorf("unknown diff tool %q", tool)
				}
				cfg, err := r.ReadConfig()
				if err != nil {
					return err
				}
				cfg.Difftool.Tool = tool
				if err := r.WriteConfig(cfg); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty got repository in %s\n", r.GotDir+string(filepath.Separator))
			return nil
		},
	}
	cmd.Flags().StringVar(&tool, "difftool", "", "default tool for got difftool")
	return cmd
}
