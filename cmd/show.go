package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmoreaux/techwatch/internal/store"
)

func showCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			env, err := a.Service.LoadLatest(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				data, err := store.Encode(env)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			fmt.Fprintf(out, "%d articles from %d sources (generated %s)\n",
				env.Metadata.TotalArticles, len(env.Metadata.Sources),
				env.Metadata.GeneratedAt.Format("2006-01-02 15:04"))
			for _, p := range env.Articles {
				fmt.Fprintf(out, "%s  %-24s %s\n", p.Date.Format("2006-01-02"), p.Source, p.Title)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "json", false, "print the raw JSON document")
	return cmd
}
