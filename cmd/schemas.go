package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Azure/toolguard/pkg/logger"
	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/service/tools"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
)

// schemaSummary is one line of `schemas list`
type schemaSummary struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    schemas.Category `json:"category,omitempty"`
	Version     string           `json:"version,omitempty"`
	Required    []string         `json:"required,omitempty"`
}

func newSchemasCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Inspect and register tool schemas",
	}
	cmd.PersistentFlags().String("store", "", "Path of the bbolt schema store to read and write")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the built-in and stored tool schemas",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				registry, err := openRegistry(cmd.Context(), v.GetString("store"))
				if err != nil {
					return err
				}
				defer registry.Close()

				category := schemas.Category(v.GetString("category"))
				summaries := []schemaSummary{}
				for _, s := range registry.List() {
					if category != "" && s.Category != category {
						continue
					}
					summaries = append(summaries, schemaSummary{
						Name:        s.Name,
						Description: s.Description,
						Category:    s.Category,
						Version:     s.Version,
						Required:    s.RequiredParams(),
					})
				}
				return writeJSON(cmd.OutOrStdout(), summaries)
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print one tool schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				registry, err := openRegistry(cmd.Context(), v.GetString("store"))
				if err != nil {
					return err
				}
				defer registry.Close()

				schema, err := registry.Get(args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), schema)
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Print every tool schema as JSON or YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				registry, err := openRegistry(cmd.Context(), v.GetString("store"))
				if err != nil {
					return err
				}
				defer registry.Close()

				list := registry.List()
				switch format := v.GetString("format"); format {
				case "json":
					return writeJSON(cmd.OutOrStdout(), list)
				case "yaml":
					enc := yaml.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent(2)
					if err := enc.Encode(list); err != nil {
						return err
					}
					return enc.Close()
				default:
					return errors.UnsupportedFormatError(format, []string{"json", "yaml"})
				}
			},
		},
		&cobra.Command{
			Use:   "register <file>",
			Short: "Register a tool schema from a JSON file (\"-\" reads stdin)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store := v.GetString("store")
				if store == "" {
					return errors.MissingParameterError("store")
				}

				data, err := readInput(cmd, args[0])
				if err != nil {
					return errors.Wrap(err, "cmd", "failed to read schema file")
				}
				var schema schemas.ToolSchema
				if err := json.Unmarshal(data, &schema); err != nil {
					return errors.NewError().
						Code(errors.CodeParseError).
						Type(errors.ErrTypeValidation).
						Message("schema file is not valid JSON").
						Cause(err).
						Build()
				}

				registry, err := openRegistry(cmd.Context(), store)
				if err != nil {
					return err
				}
				defer registry.Close()

				if err := registry.RegisterContext(cmd.Context(), &schema); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", schema.Name)
				return err
			},
		},
	)

	for _, c := range cmd.Commands() {
		switch c.Name() {
		case "list":
			c.Flags().String("category", "", "Only list tools in this category (workflow, utility, diagnostics)")
		case "export":
			c.Flags().String("format", "json", "Output format (json, yaml)")
		}
	}
	return cmd
}

// openRegistry returns a registry holding the stored schemas, when store is
// set, overlaid in memory with the built-in tool schemas. Only explicit
// registrations reach the store.
func openRegistry(ctx context.Context, store string) (*schemas.Registry, error) {
	log := logger.Component(logger.Get(), "cli")
	opts := []schemas.Option{schemas.WithLogger(log)}

	if store != "" {
		bolt, err := schemas.NewBoltStore(store, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, schemas.WithStore(bolt))
	}

	registry := schemas.NewRegistry(opts...)
	if _, err := registry.Load(ctx); err != nil {
		registry.Close()
		return nil, err
	}

	builtins, err := tools.BuiltinSchemas()
	if err != nil {
		registry.Close()
		return nil, err
	}
	if err := registry.Preload(builtins...); err != nil {
		registry.Close()
		return nil, err
	}
	return registry, nil
}
