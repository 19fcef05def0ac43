package main

import (
	"github.com/odvcencio/gotdiff/pkg/logging"
	"github.com/spf13/cobra"
)

func newRmCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "rm [--cached] <pathspec...>",
		Short: "Unstage paths and delete them from the working tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			log := logging.Get("rm").With().Bool("cached", cached).Logger()
			done := logging.OperationStart(log, "rm")
			defer done()
			if err := r.Remove(args, cached); err != nil {
				return err
			}
			if !cached {
				log.Debug().Strs("paths", args).Msg("working-tree files deleted")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "only unstage; leave working-tree files in place")
	return cmd
}
