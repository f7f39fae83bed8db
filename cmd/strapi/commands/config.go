package commands

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

const defaultTargetName = "default"

// Config represents the CLI configuration.
type Config struct {
	// Multi-target configuration
	Targets       map[string]*TargetConfig `json:"targets,omitempty"        yaml:"targets,omitempty"`
	CurrentTarget string                   `json:"current_target,omitempty" yaml:"current_target,omitempty"`

	// Global settings
	Output      string `json:"output"                 yaml:"output"`
	NoColor     bool   `json:"no_color"               yaml:"no_color"`
	SchemaCache string `json:"schema_cache,omitempty" yaml:"schema_cache,omitempty"`
	NATSURL     string `json:"nats_url,omitempty"     yaml:"nats_url,omitempty"`
}

// TargetConfig represents configuration for a single Strapi instance.
type TargetConfig struct {
	URL                 string     `json:"url"                              yaml:"url"`
	APIToken            string     `json:"api_token,omitempty"              yaml:"api_token,omitempty"`
	APIVersion          string     `json:"api_version,omitempty"            yaml:"api_version,omitempty"`
	AdminEmail          string     `json:"admin_email,omitempty"            yaml:"admin_email,omitempty"`
	AdminToken          string     `json:"admin_token,omitempty"            yaml:"admin_token,omitempty"`
	AdminTokenExpiresAt *time.Time `json:"admin_token_expires_at,omitempty" yaml:"admin_token_expires_at,omitempty"`
	LastLogin           *time.Time `json:"last_login,omitempty"             yaml:"last_login,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage Strapi CLI configuration including targets and settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigUseCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration. Tokens are masked in table output.",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			switch viper.GetString("output") {
			case constants.OutputFormatJSON, constants.OutputFormatYAML:
				return render(cmd, config, nil)
			default:
				return displayConfigTable(cmd, config)
			}
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Global keys: output, no_color, schema_cache (memory, nats, none), nats_url.
Target keys: url, api_token, api_version, admin_email. Target keys apply to
the target named by --target, else the current target, else "default".`,
		Args: cobra.ExactArgs(2), //nolint:mnd // KEY VALUE
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			name, err := setConfigValue(config, viper.GetString("target"), args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			return outputConfigUpdateResult(cmd, "set", args[0], displayValue(args[0], args[1]), name)
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value. Unsetting url removes the whole target.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			name, err := unsetConfigValue(config, viper.GetString("target"), args[0])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			return outputConfigUpdateResult(cmd, "unset", args[0], "", name)
		},
	}
}

func newConfigUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use TARGET",
		Short: "Select the current target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if _, exists := config.Targets[args[0]]; !exists {
				return fmt.Errorf("%w: '%s'", constants.ErrTargetNotFound, args[0])
			}

			config.CurrentTarget = args[0]

			err := saveConfigStruct(config)
			if err != nil {
				return err
			}

			return outputConfigUpdateResult(cmd, "use", "current_target", args[0], "")
		},
	}
}

func loadConfig() *Config {
	config := &Config{
		Output:        viper.GetString("output"),
		NoColor:       viper.GetBool("no_color"),
		SchemaCache:   viper.GetString("schema_cache"),
		NATSURL:       viper.GetString("nats_url"),
		CurrentTarget: viper.GetString("current_target"),
		Targets:       make(map[string]*TargetConfig),
	}

	for name, raw := range viper.GetStringMap("targets") {
		if targetMap, ok := raw.(map[string]interface{}); ok {
			config.Targets[name] = parseTargetConfig(targetMap)
		}
	}

	return config
}

// parseTargetConfig parses target configuration from a map.
func parseTargetConfig(targetMap map[string]interface{}) *TargetConfig {
	target := &TargetConfig{}

	if value, ok := targetMap["url"].(string); ok {
		target.URL = value
	}

	if value, ok := targetMap["api_token"].(string); ok {
		target.APIToken = value
	}

	if value, ok := targetMap["api_version"].(string); ok {
		target.APIVersion = value
	}

	if value, ok := targetMap["admin_email"].(string); ok {
		target.AdminEmail = value
	}

	if value, ok := targetMap["admin_token"].(string); ok {
		target.AdminToken = value
	}

	target.AdminTokenExpiresAt = parseTimeValue(targetMap["admin_token_expires_at"])
	target.LastLogin = parseTimeValue(targetMap["last_login"])

	return target
}

func parseTimeValue(raw interface{}) *time.Time {
	switch value := raw.(type) {
	case time.Time:
		return &value
	case string:
		parsed, err := time.Parse(time.RFC3339, value)
		if err == nil {
			return &parsed
		}
	}

	return nil
}

// configFilePath returns the file viper read, or the default location.
func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".strapi", "config.yml"), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// Later reads in this process see the saved file.
	viper.SetConfigFile(configFile)

	err = viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to reload config file: %w", err)
	}

	return nil
}

// targetName derives a target name from a URL host, e.g. "cms.example.com".
func targetName(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Hostname() == "" {
		return defaultTargetName
	}

	return parsed.Hostname()
}

// resolveTarget returns the name and configuration of the target to use:
// the flag, else the current target, else the first one by name.
func resolveTarget(config *Config, flag string) (string, *TargetConfig, error) {
	name := flag
	if name == "" {
		name = config.CurrentTarget
	}

	if name == "" {
		if len(config.Targets) == 0 {
			return "", nil, constants.ErrNoTargetsConfigured
		}

		names := lo.Keys(config.Targets)
		slices.Sort(names)
		name = names[0]
	}

	target, exists := config.Targets[name]
	if !exists {
		return "", nil, fmt.Errorf("%w: '%s'", constants.ErrTargetNotFound, name)
	}

	return name, target, nil
}

func setConfigValue(config *Config, targetFlag, key, value string) (string, error) {
	switch key {
	case "output":
		if !lo.Contains(outputFormats, value) {
			return "", fmt.Errorf("%w: %s", constants.ErrInvalidOutputFormat, value)
		}

		config.Output = value
	case "no_color":
		config.NoColor = parseBoolValue(value)
	case "schema_cache":
		cacheType := strapi.CacheType(value)
		if cacheType != strapi.CacheTypeMemory && cacheType != strapi.CacheTypeNATS && cacheType != strapi.CacheTypeNone {
			return "", fmt.Errorf("%w: %s", strapi.ErrUnsupportedCacheType, value)
		}

		config.SchemaCache = value
	case "nats_url":
		config.NATSURL = value
	default:
		return setTargetValue(config, targetFlag, key, value)
	}

	return "", nil
}

func setTargetValue(config *Config, targetFlag, key, value string) (string, error) {
	handler, ok := targetConfigHandler(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	name := lo.CoalesceOrEmpty(targetFlag, config.CurrentTarget, defaultTargetName)

	target, exists := config.Targets[name]
	if !exists {
		target = &TargetConfig{}
		config.Targets[name] = target
	}

	if config.CurrentTarget == "" {
		config.CurrentTarget = name
	}

	handler(target, value)

	return name, nil
}

func targetConfigHandler(key string) (func(*TargetConfig, string), bool) {
	handlers := map[string]func(*TargetConfig, string){
		"url":         func(t *TargetConfig, v string) { t.URL = strings.TrimRight(v, "/") },
		"api_token":   func(t *TargetConfig, v string) { t.APIToken = v },
		"api_version": func(t *TargetConfig, v string) { t.APIVersion = v },
		"admin_email": func(t *TargetConfig, v string) { t.AdminEmail = v },
	}

	handler, ok := handlers[key]

	return handler, ok
}

func parseBoolValue(value string) bool {
	parsed, err := strconv.ParseBool(value)

	return err == nil && parsed
}

func unsetConfigValue(config *Config, targetFlag, key string) (string, error) {
	switch key {
	case "output":
		config.Output = constants.OutputFormatTable
	case "no_color":
		config.NoColor = false
	case "schema_cache":
		config.SchemaCache = ""
	case "nats_url":
		config.NATSURL = ""
	case "current_target":
		config.CurrentTarget = ""
	default:
		return unsetTargetValue(config, targetFlag, key)
	}

	return "", nil
}

func unsetTargetValue(config *Config, targetFlag, key string) (string, error) {
	name, target, err := resolveTarget(config, targetFlag)
	if err != nil {
		return "", err
	}

	switch key {
	case "url":
		delete(config.Targets, name)

		if config.CurrentTarget == name {
			config.CurrentTarget = ""
		}
	case "api_token":
		target.APIToken = ""
	case "api_version":
		target.APIVersion = ""
	case "admin_email":
		target.AdminEmail = ""
		target.AdminToken = ""
		target.AdminTokenExpiresAt = nil
	case "admin_token":
		target.AdminToken = ""
		target.AdminTokenExpiresAt = nil
	default:
		return "", fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return name, nil
}

// displayValue masks secrets.
func displayValue(key, value string) string {
	if strings.Contains(key, "token") {
		return maskSecret(value)
	}

	return value
}

func maskSecret(value string) string {
	const visible = 4

	if value == "" {
		return "-"
	}

	if len(value) <= visible*2 {
		return "****"
	}

	return value[:visible] + "..." + value[len(value)-visible:]
}

// displayConfigTable displays configuration in a table format.
func displayConfigTable(cmd *cobra.Command, config *Config) error {
	out := cmd.OutOrStdout()

	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")
	_ = table.Append([]string{"Output", formatConfigValue(config.Output)})
	_ = table.Append([]string{"No Color", strconv.FormatBool(config.NoColor)})
	_ = table.Append([]string{"Schema Cache", formatConfigValue(config.SchemaCache)})
	_ = table.Append([]string{"NATS URL", formatConfigValue(config.NATSURL)})
	_ = table.Append([]string{"Current Target", formatConfigValue(config.CurrentTarget)})

	_, _ = fmt.Fprintln(out, "Global Configuration:")

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if len(config.Targets) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo targets configured. Use 'strapi login' or 'strapi config set url <url>' to add one.")

		return nil
	}

	_, _ = fmt.Fprintln(out, "\nConfigured Targets:")

	targets := tablewriter.NewWriter(out)
	targets.Header("Name", "URL", "Version", "API Token", "Admin", "Current")

	names := lo.Keys(config.Targets)
	slices.Sort(names)

	for _, name := range names {
		target := config.Targets[name]
		_ = targets.Append([]string{
			name,
			target.URL,
			formatConfigValue(target.APIVersion),
			maskSecret(target.APIToken),
			formatConfigValue(target.AdminEmail),
			formatCurrentIndicator(name == config.CurrentTarget),
		})
	}

	err = targets.Render()
	if err != nil {
		return fmt.Errorf("failed to render targets table: %w", err)
	}

	return nil
}

func formatConfigValue(value string) string {
	if value == "" {
		return "-"
	}

	return value
}

func formatCurrentIndicator(isCurrent bool) string {
	if isCurrent {
		return "*"
	}

	return ""
}

// outputConfigUpdateResult outputs configuration update results in the requested format.
func outputConfigUpdateResult(cmd *cobra.Command, action, key, value, target string) error {
	result := map[string]string{
		"action": action,
		"key":    key,
	}

	if value != "" {
		result["value"] = value
	}

	if target != "" {
		result["target"] = target
	}

	switch viper.GetString("output") {
	case constants.OutputFormatJSON:
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")

		err := encoder.Encode(result)
		if err != nil {
			return fmt.Errorf("failed to encode config result as JSON: %w", err)
		}

		return nil
	case constants.OutputFormatYAML:
		err := yaml.NewEncoder(cmd.OutOrStdout()).Encode(result)
		if err != nil {
			return fmt.Errorf("failed to encode config result as YAML: %w", err)
		}

		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Property", "Value")

	for _, row := range [][]string{
		{"Action", action},
		{"Key", key},
		{"Value", value},
		{"Target", target},
	} {
		if row[1] == "" {
			continue
		}

		err := table.Append(row)
		if err != nil {
			return fmt.Errorf("failed to append %s to table: %w", strings.ToLower(row[0]), err)
		}
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render update results table: %w", err)
	}

	return nil
}
