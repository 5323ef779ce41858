package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/subwatch"
)

func toolsCommand(conf *subwatch.Configuration) *cobra.Command {
	return &cobra.Command{
		Use:     "tools",
		Short:   "Check the enumeration tools are installed",
		GroupID: "manage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			green := color.New(color.FgGreen).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()
			out := cmd.OutOrStdout()

			var missing []string
			for _, st := range subwatch.CheckTools(subwatch.DefaultTools(conf.Tools)) {
				if st.Err != nil {
					fmt.Fprintf(out, "%s %-10s not found (%s) - install from: %s\n", red("✘"), st.Tool.Name, st.Tool.Path, st.Tool.Home)
					missing = append(missing, st.Tool.Name)
					continue
				}
				fmt.Fprintf(out, "%s %-10s %s\n", green("✔"), st.Tool.Name, st.Resolved)
			}

			if len(missing) > 0 {
				fmt.Fprintf(out, "\n%s missing tools: %v\n", yellow("!"), missing)
				fmt.Fprintln(out, "Install them or scans will skip them.")
			}
			return nil
		},
	}
}
