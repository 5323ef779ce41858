package cmd

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/subwatch"
)

type notifyFlags struct {
	Domain     string
	Subdomains []string
}

func notifyArgs(f *notifyFlags) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("domain") {
			if len(args) > 0 {
				return errors.New("a message cannot be combined with --domain")
			}
			return nil
		}
		if err := cobra.RangeArgs(1, 2)(cmd, args); err != nil {
			return errors.Wrap(err, "usage: notify <message> [level]")
		}
		if strings.TrimSpace(args[0]) == "" {
			return errors.New("message must not be empty")
		}
		return nil
	}
}

func splitSubdomains(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func notifyCommand(conf *subwatch.Configuration) *cobra.Command {
	var f notifyFlags

	cmd := &cobra.Command{
		Use:     "notify (<message> [level] | --domain domain --subdomains a,b,...)",
		Short:   "Send an ad-hoc notification",
		GroupID: "run",
		Example: `
		$ subwatch notify "backup finished"
		$ subwatch notify "disk almost full" WARNING
		$ subwatch notify --domain example.com --subdomains a.example.com,b.example.com
		`,
		Long: `
		With a single message the text is sent as is. With a level (INFO, WARNING, ERROR,
		SUCCESS, ALERT) it is sent as a formatted "System Alert". With --domain and
		--subdomains the subdomains are sent as a file report, like a scan would.
		`,
		Args: notifyArgs(&f),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return conf.RequireCredentials()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n := subwatch.NewNotifier(conf.Telegram, conf.FS())

			if cmd.Flags().Changed("domain") {
				subs := splitSubdomains(f.Subdomains)
				if len(subs) == 0 {
					return errors.New("--subdomains must name at least one subdomain")
				}
				return n.Report(ctx, subwatch.Report{
					Domain:    f.Domain,
					Hosts:     subwatch.NewHostnames(subs...),
					Resolving: -1,
				})
			}

			if len(args) == 1 {
				return n.Message(ctx, args[0])
			}
			return n.Alert(ctx, "System Alert", args[0], subwatch.Level(args[1]))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.Domain, "domain", "", "Domain the subdomains belong to")
	flags.StringSliceVar(&f.Subdomains, "subdomains", []string{}, "Comma separated subdomains")
	cmd.MarkFlagsRequiredTogether("domain", "subdomains")

	return cmd
}
