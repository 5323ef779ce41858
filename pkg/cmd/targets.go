package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/subwatch"
)

func targetsCommand(conf *subwatch.Configuration) *cobra.Command {
	var store *subwatch.TargetStore

	targets := &cobra.Command{
		Use:     "targets",
		Short:   "Manage the targets file",
		GroupID: "manage",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// cobra only runs the closest persistent pre-run
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			store = subwatch.NewTargetStore(conf.FS(), conf.TargetsPath)
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample targets file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := store.CreateTemplate()
			if err != nil {
				return err
			}
			if !created {
				log.Info().Str("file", store.Path()).Msg("targets file already exists")
				return nil
			}
			log.Info().Str("file", store.Path()).Msg("created sample targets file")
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tl, err := store.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-30s | %-7s | %-20s | %s\n", "Domain", "Enabled", "Last scanned", "Description")
			for _, t := range tl.Targets {
				if t == nil {
					continue
				}

				last := "never"
				switch {
				case t.LastScanned == nil:
				case t.LastScanned.IsZero():
					last = fmt.Sprintf("%q", t.LastScanned.Raw())
				default:
					last = t.LastScanned.Local().Format(time.DateTime)
				}
				fmt.Fprintf(out, "%-30s | %-7t | %-20s | %s\n", t.Domain, t.Enabled, last, t.Description)
			}
			return nil
		},
	}

	targets.AddCommand(initCmd, listCmd)
	return targets
}
