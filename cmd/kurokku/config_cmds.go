package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/store"
)

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read, write and check the display configuration document",
	}
	cmd.AddCommand(configGetCmd(flags), configSetCmd(flags), configValidateCmd())
	return cmd
}

func configGetCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the stored configuration document",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			return withStore(cmd.Context(), flags, func(ctx context.Context, env *storeEnv) error {
				data, err := env.store.Get(ctx, document.ConfigKey)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no configuration stored at %s", document.ConfigKey)
				}
				if err != nil {
					return err
				}
				out, err := exportDocument(data, format)
				if err != nil {
					return err
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(out)
					return err
				}
				if err := os.WriteFile(output, out, 0644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().String("format", "json", "output format: json or yaml")
	cmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	return cmd
}

func configSetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file>",
		Short: "Validate a JSON or YAML document and store it as the configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, cfg, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), flags, func(ctx context.Context, env *storeEnv) error {
				if err := env.store.Set(ctx, document.ConfigKey, data, 0); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored configuration with %d widgets\n", len(cfg.Widgets))
				return nil
			})
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a JSON or YAML configuration document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := readDocument(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %s\n", args[0], summarizeConfig(cfg))
			return nil
		},
	}
}

// readDocument loads a configuration document from path and returns it as
// compact JSON along with the parsed form.
func readDocument(path string) ([]byte, *document.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return importDocument(data, path)
}

// importDocument converts data to compact JSON, using YAML when name has a
// .yaml or .yml extension, and validates it.
func importDocument(data []byte, name string) ([]byte, *document.Config, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", name, err)
		}
		converted, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("convert %s: %w", name, err)
		}
		data = converted
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", name, err)
		}
		data = buf.Bytes()
	}

	cfg, err := document.ParseConfig(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return data, cfg, nil
}

// exportDocument renders stored JSON as indented JSON or YAML.
func exportDocument(data []byte, format string) ([]byte, error) {
	switch format {
	case "json", "":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return nil, fmt.Errorf("stored configuration is not JSON: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	case "yaml", "yml":
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("stored configuration is not JSON: %w", err)
		}
		out, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("render yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

// summarizeConfig lists widget kinds in order, marking disabled ones.
func summarizeConfig(cfg *document.Config) string {
	kinds := make([]string, 0, len(cfg.Widgets))
	for _, w := range cfg.Widgets {
		b := w.Common()
		if b.Enabled {
			kinds = append(kinds, string(b.Type))
		} else {
			kinds = append(kinds, string(b.Type)+" (disabled)")
		}
	}
	return fmt.Sprintf("%d widgets [%s]", len(kinds), strings.Join(kinds, ", "))
}
