package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/strapi-client/cmd/strapi/commands"
	"github.com/fivetwenty-io/strapi-client/internal/strapitest"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

const (
	categoryUID = "api::category.category"
	articleUID  = "api::article.article"
	homepageUID = "api::homepage.homepage"
)

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

// newRootCommand mirrors the CLI root without its persistent flags; tests
// set the flag values through viper.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{Use: "strapi", SilenceUsage: true, SilenceErrors: true}

	root.AddCommand(commands.NewVersionCommand("1.2.3", "abc123", "2024-01-15"))
	root.AddCommand(commands.NewLoginCommand())
	root.AddCommand(commands.NewConfigCommand())
	root.AddCommand(commands.NewContentTypesCommand())
	root.AddCommand(commands.NewComponentsCommand())
	root.AddCommand(commands.NewEntriesCommand())
	root.AddCommand(commands.NewMediaCommand())
	root.AddCommand(commands.NewExportCommand())
	root.AddCommand(commands.NewImportCommand())

	return root
}

// useTempConfig points viper at an empty config file in a temp directory and
// resets viper when the test ends.
func useTempConfig(t *testing.T) string {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yml")
	viper.SetConfigFile(path)
	viper.Set("no_color", true)

	return path
}

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand()

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func readConfigFile(t *testing.T, path string) *commands.Config {
	t.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	config := &commands.Config{}
	require.NoError(t, yaml.Unmarshal(raw, config))

	return config
}

func blogServer(t *testing.T, version strapi.APIVersion) *strapitest.Server {
	t.Helper()

	server := strapitest.NewServer(t, version)
	server.Token = "secret"
	server.AddContentType(categoryUID, "category", "categories", "collectionType",
		map[string]map[string]interface{}{"name": {"type": "string"}})
	server.AddContentType(articleUID, "article", "articles", "collectionType",
		map[string]map[string]interface{}{
			"title":    {"type": "string"},
			"category": {"type": "relation", "relation": "manyToOne", "target": categoryUID},
			"seo":      {"type": "component", "component": "shared.seo", "repeatable": false},
		})
	server.AddContentType(homepageUID, "homepage", "homepages", "singleType",
		map[string]map[string]interface{}{"headline": {"type": "string"}})
	server.AddComponent("shared.seo", map[string]map[string]interface{}{"metaTitle": {"type": "string"}})

	server.Seed("categories", map[string]interface{}{"name": "News"})
	tech, _ := server.Seed("categories", map[string]interface{}{"name": "Tech"})
	server.Seed("articles", map[string]interface{}{"title": "First"})
	server.Seed("articles", map[string]interface{}{"title": "Second", "category": tech})
	server.Seed("articles", map[string]interface{}{"title": "Third", "category": tech})
	server.Seed("homepage", map[string]interface{}{"headline": "Welcome"})

	return server
}

// connectTo makes the CLI talk to server through the --url and --token overrides.
func connectTo(server *strapitest.Server) {
	viper.Set("url", server.URL)
	viper.Set("token", server.Token)
}
