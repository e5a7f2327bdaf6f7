package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Wiring(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentPreRunE, "config must be initialized before any command runs")

	sub, _, err := rootCmd.Find([]string{"sync"})
	require.NoError(t, err)
	assert.Equal(t, "sync <export-dir>", sub.Use)

	for _, flag := range []string{"work-dir", "token", "log-level"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "missing persistent flag %s", flag)
	}
}
