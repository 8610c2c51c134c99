package cmd

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-optim/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing image-optim configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration in YAML format: built-in defaults
overridden by the config file and IMOP_ environment variables.

Redirect the output to create a configuration template:

  image-optim config dump > image-optim.yaml

Environment variables use the IMOP_ prefix and underscores for nesting.
Example: optim.quality -> IMOP_OPTIM_QUALITY`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dumpConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags,
// formatting durations for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		key := typ.Field(i).Tag.Get("mapstructure")
		if key == "" {
			key = typ.Field(i).Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(v)
			} else {
				result[key] = v
			}
		}
	}
	return result
}

func dumpConfig(w io.Writer, cfg *config.Config) error {
	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprintln(w, "# image-optim configuration")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "# Duration format: 30s, 5m, 720h")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "")
	_, err = w.Write(yamlData)
	return err
}
