package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [<key> [<value>]]",
		Short: "Get, set or list repository settings",
		Long: `Keys: user.name, difftool.tool, difftool.tmpdir and
difftool.tools.<name>.cmd. With no arguments every set key is listed.
An empty value clears the key.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch len(args) {
			case 0:
				for _, key := range cfg.ConfigKeys() {
					v, _ := cfg.GetConfigValue(key)
					fmt.Fprintf(out, "%s=%s\n", key, v)
				}
				return nil
			case 1:
				v, err := cfg.GetConfigValue(args[0])
				if err != nil {
					return err
				}
				if v != "" {
					fmt.Fprintln(out, v)
				}
				return nil
			}
			if err := cfg.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			return r.WriteConfig(cfg)
		},
	}
}
