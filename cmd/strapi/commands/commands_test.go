package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/strapi-client/cmd/strapi/commands"
)

func TestCommandStructure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		use         string
		aliases     []string
		subcommands []string
	}{
		{name: "config", use: "config", subcommands: []string{"show", "set", "unset", "use"}},
		{name: "content-types", use: "content-types", aliases: []string{"content-type", "ct"}, subcommands: []string{"list", "schema"}},
		{name: "components", use: "components", aliases: []string{"component"}, subcommands: []string{"list", "schema"}},
		{name: "entries", use: "entries", aliases: []string{"entry"}, subcommands: []string{"list", "get", "delete"}},
		{name: "media", use: "media", aliases: []string{"files", "upload"}, subcommands: []string{"list", "get", "upload", "download", "update", "delete"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := findSubcommand(newRootCommand(), tt.name)
			require.NotNil(t, cmd)
			assert.Equal(t, tt.use, cmd.Use)
			assert.Equal(t, tt.aliases, cmd.Aliases)
			assert.NotEmpty(t, cmd.Short)

			names := make([]string, 0, len(cmd.Commands()))
			for _, sub := range cmd.Commands() {
				names = append(names, sub.Name())
				assert.NotNil(t, sub.RunE, "%s %s should run", tt.name, sub.Name())
			}

			assert.ElementsMatch(t, tt.subcommands, names)
		})
	}
}

func TestExportCommandFlags(t *testing.T) {
	t.Parallel()

	cmd := commands.NewExportCommand()
	assert.Equal(t, "export", cmd.Use)
	assert.NotNil(t, cmd.RunE)

	for _, name := range []string{"content-types", "all", "file", "format", "media", "media-dir", "page-size"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "Flag %s should exist", name)
	}

	assert.Equal(t, "f", cmd.Flags().Lookup("file").Shorthand)
	assert.Equal(t, "100", cmd.Flags().Lookup("page-size").DefValue)
}

func TestImportCommandFlags(t *testing.T) {
	t.Parallel()

	cmd := commands.NewImportCommand()
	assert.Equal(t, "import FILE", cmd.Use)
	require.Error(t, cmd.Args(cmd, nil))
	require.NoError(t, cmd.Args(cmd, []string{"export.json"}))

	for _, name := range []string{"format", "dry-run", "skip-relations", "content-types", "media", "media-dir"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "Flag %s should exist", name)
	}
}

func TestEntriesListFlags(t *testing.T) {
	t.Parallel()

	list := findSubcommand(commands.NewEntriesCommand(), "list")
	require.NotNil(t, list)
	assert.Equal(t, "list ENDPOINT", list.Use)

	for _, name := range []string{"page", "page-size", "sort", "populate", "filter", "locale", "all"} {
		assert.NotNil(t, list.Flags().Lookup(name), "Flag %s should exist", name)
	}

	assert.Equal(t, "25", list.Flags().Lookup("page-size").DefValue)
}

func TestLoginCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewLoginCommand()
	assert.Equal(t, "login", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("admin-email"))
	assert.NotEmpty(t, cmd.Example)
}
