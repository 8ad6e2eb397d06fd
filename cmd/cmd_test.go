package cmd

import (
	"bytes"
	"testing"

	"kzcasino/config"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	cfg := config.NewTestConfig()
	require.NoError(t, configureLogging(cfg))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	cfg.LogLevel = "chatty"
	assert.Error(t, configureLogging(cfg))
}

func TestParseIDAndAmount(t *testing.T) {
	id, amount, err := parseIDAndAmount([]string{"42", "-300"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(-300), amount)

	id, amount, err = parseIDAndAmount([]string{"7"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Zero(t, amount)

	_, _, err = parseIDAndAmount([]string{"bob"})
	assert.Error(t, err)

	_, _, err = parseIDAndAmount([]string{"7", "lots"})
	assert.Error(t, err)
}

func TestCommandArguments(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	t.Cleanup(config.ResetConfig)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"reset needs a name or --all", []string{"params", "reset"}, "pass a parameter name or --all"},
		{"reset rejects both", []string{"params", "reset", "min_bet", "--all"}, "pass a parameter name or --all"},
		{"wipe needs a target", []string{"balance", "wipe"}, "pass a discord id or --all"},
		{"down rejects a bad step count", []string{"migrate", "down", "zero"}, "invalid step count"},
		{"set needs two args", []string{"balance", "set", "1"}, "accepts 2 arg(s)"},
		{"transfer needs three args", []string{"balance", "transfer", "1", "2"}, "accepts 3 arg(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			err := root.Execute()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
