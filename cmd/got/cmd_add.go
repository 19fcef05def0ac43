package main

import (
	"errors"

	"github.com/odvcencio/gotdiff/pkg/logging"
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "add [-A] [<pathspec>...]",
		Short: "Stage working-tree content, including nested repositories as gitlinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			paths, err := addPaths(args, all, r.RootDir)
			if err != nil {
				return err
			}
			log := logging.Get("add")
			done := logging.OperationStart(log.With().Strs("paths", paths).Logger(), "add")
			defer done()
			return r.Add(paths)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "A", false, "stage the whole working tree")
	return cmd
}

// addPaths resolves what to stage: "-A" means root and excludes explicit
// paths.
func addPaths(args []string, all bool, root string) ([]string, error) {
	switch {
	case all && len(args) > 0:
		return nil, errors.New("add: -A takes no pathspec")
	case all:
		return []string{root}, nil
	case len(args) == 0:
		return nil, errors.New("add: nothing specified, nothing added (use -A to stage everything)")
	}
	return args, nil
}
