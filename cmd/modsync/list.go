package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [game...]",
		Short: "Print the selected games and their subscribed mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			selectors := s.cfg.Games
			if len(args) > 0 {
				selectors = args
			}
			api, err := s.modio()
			if err != nil {
				return err
			}
			games, err := api.ResolveGames(cmd.Context(), selectors)
			if err != nil {
				return fmt.Errorf("resolve games: %w", err)
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			for _, g := range games {
				_, _ = bold.Fprintf(out, "%s", g.Name)
				_, _ = fmt.Fprintf(out, " (%s, id %d) %d mods\n", g.NameID, g.ID, len(g.Mods))
				for _, m := range g.Mods {
					_, _ = fmt.Fprintf(out, "  %-32s %s\n", m.NameID, m.ArchiveName())
				}
			}
			return nil
		},
	}
}
