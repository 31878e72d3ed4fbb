package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/extensions"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate a config file without sending anything",
	Long: `Validate a hookline config file: syntax, field values and every enabled
extension (schema files are read, auth settings checked).

Examples:
  hookline validate
  hookline validate staging.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	path := configFlag
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		found, ok := config.FindConfigFile(".")
		if !ok {
			return errs.Validation("no config file found (looked for %v)", config.ConfigFilenames)
		}
		path = found
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", path, err)
		return &reportedError{err: errs.Wrap(errs.KindValidation, err, "validation failed")}
	}

	set, err := extensions.FromConfig(cfg, extensions.Options{})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", path, err)
		return &reportedError{err: errs.Wrap(errs.KindValidation, err, "validation failed")}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s", path)
	if names := set.Names(); len(names) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " (%d extensions)", len(names))
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
