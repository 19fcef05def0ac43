package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var author string

	cmd := &cobra.Command{
		Use:   "commit -m <message>",
		Short: "Record the staged snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return errors.New("commit message is required (-m)")
			}
			r, err := openRepo()
			if err != nil {
				return err
			}

			if author == "" {
				cfg, err := r.ReadConfig()
				if err != nil {
					return err
				}
				author = commitAuthor(cfg.User.Name, os.Getenv("USER"))
			}

			h, err := r.Commit(message, author)
			if err != nil {
				return err
			}

			branch := "HEAD"
			if head, err := r.Head(); err == nil && strings.HasPrefix(head, "refs/heads/") {
				branch = strings.TrimPrefix(head, "refs/heads/")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, shortHash(h), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override author (default: user.name, then $USER)")
	return cmd
}

// commitAuthor picks the first non-empty candidate.
func commitAuthor(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return "unknown"
}
