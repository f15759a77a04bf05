package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "list", "cities", "prices", "favorite", "contacted", "note", "summary", "distances", "export"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "residence-finder", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestListCommand_Flags(t *testing.T) {
	for _, name := range []string{"city", "price", "near", "radius", "favorites", "search", "format"} {
		assert.NotNil(t, listCmd.Flags().Lookup(name), "list should have --%s flag", name)
	}
	assert.Equal(t, "10", listCmd.Flags().Lookup("radius").DefValue)
	assert.Equal(t, "table", listCmd.Flags().Lookup("format").DefValue)
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "residencias.xlsx", flag.DefValue)
	assert.NotNil(t, exportCmd.Flags().Lookup("city"), "export shares the filter flags")
}

func TestSummaryCommand_Flags(t *testing.T) {
	assert.NotNil(t, summaryCmd.Flags().Lookup("refresh"))
	assert.NotNil(t, summaryCmd.Flags().Lookup("json"))
}

func TestAnnotationCommands_Args(t *testing.T) {
	assert.Error(t, favoriteCmd.Args(favoriteCmd, nil))
	assert.NoError(t, favoriteCmd.Args(favoriteCmd, []string{"Residencia Los Olmos"}))
	assert.Error(t, noteCmd.Args(noteCmd, nil))
	assert.NoError(t, noteCmd.Args(noteCmd, []string{"Residencia Los Olmos", "llamar", "mañana"}))
}
