package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/handle-crawler/internal/config"
	"github.com/jonathan/handle-crawler/internal/schemas"
)

var validateOutputCmd = &cobra.Command{
	Use:   "validate-output [file|-]",
	Short: "Validate a crawl output file against the member record schema",
	Long: "Checks that the file is a JSON array of member records, that every record matches the schema " +
		"and that nicknames are unique. --schema validates the whole document against another schema instead. " +
		"A file argument of - reads the document from stdin.",
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateOutput,
}

var validateSchemaPath string

func init() {
	validateOutputCmd.Flags().StringVarP(&validateSchemaPath, "schema", "s", "", "Validate against this JSON Schema file")

	rootCmd.AddCommand(validateOutputCmd)
}

func runValidateOutput(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig(cmd, func(flagSet, *config.Config) {})
		if err != nil {
			return err
		}
		path = cfg.Output
	}

	var err error
	switch {
	case path == "-":
		path = "stdin"
		err = validateStdin(cmd.InOrStdin())
	case validateSchemaPath != "":
		err = schemas.ValidateJSON(validateSchemaPath, path)
	default:
		err = schemas.ValidateOutputFile(path)
	}

	var validationErr *schemas.ValidationError
	if errors.As(err, &validationErr) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), validationErr.Error())
		return fmt.Errorf("%s: %d problem(s) found", path, len(validationErr.Errors))
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", path)
	return nil
}

func validateStdin(in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	if validateSchemaPath == "" {
		return schemas.ValidateOutput(data)
	}

	schema, err := os.ReadFile(validateSchemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	return schemas.ValidateJSONString(string(schema), string(data))
}
