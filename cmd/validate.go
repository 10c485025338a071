package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Azure/toolguard/pkg/logger"
	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate tool parameters or MCP request envelopes",
		Long: `The validate command prints the validation result as JSON and exits
non-zero when the input is invalid.`,
	}
	cmd.PersistentFlags().String("store", "", "Path of the bbolt schema store holding extra schemas")
	cmd.PersistentFlags().Bool("strict", false, "Reject unknown tools and methods")

	params := &cobra.Command{
		Use:   "params",
		Short: "Validate parameters against a tool schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tool := v.GetString("tool")
			if tool == "" {
				return errors.MissingParameterError("tool")
			}

			var data []byte
			switch {
			case v.GetString("params-file") != "":
				raw, err := readInput(cmd, v.GetString("params-file"))
				if err != nil {
					return errors.Wrap(err, "cmd", "failed to read params file")
				}
				data = raw
			default:
				data = []byte(v.GetString("params"))
			}

			var args map[string]interface{}
			if err := json.Unmarshal(data, &args); err != nil {
				return errors.NewError().
					Code(errors.CodeParseError).
					Type(errors.ErrTypeValidation).
					Message("params must be a JSON object").
					Cause(err).
					Build()
			}

			validator, closeFn, err := newCLIValidator(cmd, v)
			if err != nil {
				return err
			}
			defer closeFn()

			return report(cmd, validator.ValidateToolParameters(tool, args))
		},
	}
	params.Flags().String("tool", "", "Tool name")
	params.Flags().String("params", "{}", "Tool parameters as a JSON object")
	params.Flags().String("params-file", "", "Read the parameters from a file (\"-\" reads stdin)")

	request := &cobra.Command{
		Use:   "request",
		Short: "Validate a JSON-RPC request envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readInput(cmd, v.GetString("file"))
			if err != nil {
				return errors.Wrap(err, "cmd", "failed to read request file")
			}

			validator, closeFn, err := newCLIValidator(cmd, v)
			if err != nil {
				return err
			}
			defer closeFn()

			return report(cmd, validator.ValidateRequest(payload))
		},
	}
	request.Flags().String("file", "-", "Request file (\"-\" reads stdin)")

	cmd.AddCommand(params, request)
	return cmd
}

func newCLIValidator(cmd *cobra.Command, v *viper.Viper) (*validators.Validator, func(), error) {
	registry, err := openRegistry(cmd.Context(), v.GetString("store"))
	if err != nil {
		return nil, nil, err
	}

	opts := validators.DefaultOptions()
	opts.StrictMode = v.GetBool("strict")
	validator := validators.NewValidator(registry, opts, logger.Get())
	return validator, func() { _ = registry.Close() }, nil
}

// report prints result and returns its error when invalid
func report(cmd *cobra.Command, result *validators.ValidationResult) error {
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	return result.Err()
}
