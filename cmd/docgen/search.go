package main

import (
	"fmt"
	"text/tabwriter"

	"gcloud-docgen/internal/search"
	"gcloud-docgen/internal/storage"

	"github.com/spf13/cobra"
)

type searchOptions struct {
	root     string
	versions []string
	lots     []string
	limit    int
}

func newSearchCmd(e *env, root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <service name>",
		Short: "Find service documents in a local document tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.root
			if dir == "" {
				cfg, err := root.loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.Storage.Local.Root
			}

			store := storage.NewLocal(e.fs, dir)
			results, err := search.NewSearcher(nil, store, e.log).Search(cmd.Context(), search.Query{
				ServiceName: args[0],
				Versions:    opts.versions,
				Lots:        opts.lots,
				Limit:       opts.limit,
			})
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(e.out, "no documents found")
				return nil
			}

			w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tOWNER\tGC\tLOT\tTYPE\tDRAFT\tKEY")
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n", r.ServiceName, r.Owner, r.FrameworkVersion, r.Lot, r.DocType, r.Draft, r.WordKey)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&opts.root, "root", "", "Document tree root (default storage.local.root)")
	cmd.Flags().StringSliceVar(&opts.versions, "framework-version", nil, "Framework versions to search")
	cmd.Flags().StringSliceVar(&opts.lots, "lot", nil, "Lots to search")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum results")
	return cmd
}
