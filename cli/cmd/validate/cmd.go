package validate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/appmodel/provider/file"
	v1 "ocm.software/open-component-model/appmodel/provider/file/spec/v1"
)

const FlagSchema = "schema"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate {repository-document}",
		Short: "Validate a repository document",
		Long: `Validate a repository document against the JSON schema of
repository.appmodel.ocm.software/v1 and check that all coordinates it contains
can be parsed. With --schema the JSON schema is printed instead.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if schema, _ := cmd.Flags().GetBool(FlagSchema); schema {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE:              ValidateRepository,
		DisableAutoGenTag: true,
	}
	cmd.Flags().Bool(FlagSchema, false, "print the JSON schema of the repository document")
	return cmd
}

func ValidateRepository(cmd *cobra.Command, args []string) error {
	schema, err := cmd.Flags().GetBool(FlagSchema)
	if err != nil {
		return fmt.Errorf("getting schema flag failed: %w", err)
	}
	if schema {
		data, err := v1.JSONSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	repo, err := file.Load(f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid, %d artifacts\n", args[0], len(repo.Coordinates()))
	return err
}
