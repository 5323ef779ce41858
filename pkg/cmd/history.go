package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/subwatch"
)

func historyCommand(conf *subwatch.Configuration) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history [domain]",
		Short:   "Show recorded scans",
		GroupID: "manage",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if conf.HistoryDB == "" {
				return errors.New("scan history is disabled")
			}

			domain := ""
			if len(args) > 0 {
				domain = args[0]
			}

			repo := subwatch.NewHistoryRepo(conf.HistoryDB)
			defer repo.Close()

			scans, err := repo.FindScans(domain, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-19s | %-30s | %6s | %6s | %-8s | %s\n", "Time", "Domain", "Total", "New", "Notified", "Error")
			for _, s := range scans {
				fmt.Fprintf(out, "%-19s | %-30s | %6d | %6d | %-8t | %s\n",
					s.CreatedAt.Local().Format(time.DateTime), s.Domain, s.Total, s.New, s.Notified, s.Error)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of scans to show, 0 shows all")
	return cmd
}
