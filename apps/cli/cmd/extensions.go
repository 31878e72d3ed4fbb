package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/extensions"
)

var extensionsCmd = &cobra.Command{
	Use:   "extensions",
	Short: "List the configured extensions in execution order",
	Long: `List the extensions enabled by the config file, highest priority first,
with the hooks each one handles. Nothing is initialized or sent.

Examples:
  hookline extensions
  hookline extensions --config staging.yaml`,
	Args: cobra.NoArgs,
	RunE: extensionsCommand,
}

func extensionsCommand(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	set, err := extensions.FromConfig(cfg, extensions.Options{})
	if err != nil {
		return errs.Wrap(errs.KindValidation, err, "building extensions")
	}
	if len(set.Extensions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No extensions enabled")
		return nil
	}

	registry := extension.NewRegistry()
	if err := registry.Register(set.Extensions...); err != nil {
		return err
	}
	order := extension.NewScheduler(registry).Order()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPRIORITY\tCRITICAL\tHOOKS")
	for _, ext := range order {
		hooks := make([]string, 0, 9)
		for _, h := range ext.Hooks.Names() {
			hooks = append(hooks, string(h))
		}
		critical := ""
		if ext.Critical {
			critical = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", ext.Name, ext.Priority, critical, strings.Join(hooks, ","))
	}
	return tw.Flush()
}
