package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alnah/go-capture/internal/config"
)

// validConfigKeys lists all supported configuration keys.
var validConfigKeys = []string{
	config.KeyBackendURL,
}

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/go-capture/config.
Settings can also be overridden via environment variables.

Supported settings:
  backend-url    Backend base URL (env: CAPTURE_BACKEND_URL)`,
		Example: `  capture config set backend-url http://localhost:8000
  capture config get backend-url
  capture config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Supported keys:
  backend-url    Backend base URL (http or https)`,
		Example: `  capture config set backend-url http://localhost:8000
  capture config set backend-url https://capture.example.com`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the value to stdout, or nothing if not set.`,
		Example: `  capture config get backend-url`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows both values from the config file and environment variable overrides.`,
		Example: `  capture config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if !isValidConfigKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, validConfigKeys)
	}

	switch key {
	case config.KeyBackendURL:
		if err := config.ValidBackendURL(value); err != nil {
			return err
		}
	}

	if err := config.Save(key, value); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	if !isValidConfigKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, validConfigKeys)
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}

	// Environment variable fallback.
	if value == "" {
		switch key {
		case config.KeyBackendURL:
			value = env.Getenv(config.EnvBackendURL)
		}
	}

	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}

	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	// Add environment variable values for completeness.
	if _, ok := data[config.KeyBackendURL]; !ok {
		if envVal := env.Getenv(config.EnvBackendURL); envVal != "" {
			data[config.KeyBackendURL] = envVal + " (from env)"
		}
	}

	if len(data) == 0 {
		fmt.Fprintln(env.Stdout, "No configuration set.")
		fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range validConfigKeys {
			fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
		return nil
	}

	for key, value := range data {
		fmt.Fprintf(env.Stdout, "%s=%s\n", key, value)
	}

	return nil
}

// isValidConfigKey checks if a key is a valid configuration key.
func isValidConfigKey(key string) bool {
	return slices.Contains(validConfigKeys, key)
}
