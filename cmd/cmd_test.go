package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/domain/model"
	"go.uber.org/fx"
)

func TestParseTagFlags(t *testing.T) {
	tags, err := parseTagFlags([]string{"room=42", "role=agent", "empty="})
	require.NoError(t, err)
	assert.Equal(t, model.TagSet{
		"room":  model.IntTag(42),
		"role":  model.StringTag("agent"),
		"empty": model.StringTag(""),
	}, tags)

	_, err = parseTagFlags([]string{"novalue"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestParseHeaderFlags(t *testing.T) {
	header, err := parseHeaderFlags([]string{"X-Webitel-Access: token-1", "X-Trace:a:b", "X-Empty:"})
	require.NoError(t, err)
	assert.Equal(t, "token-1", header.Get("X-Webitel-Access"))
	assert.Equal(t, "a:b", header.Get("X-Trace"))
	assert.Equal(t, []string{""}, header.Values("X-Empty"))

	_, err = parseHeaderFlags([]string{"no-colon"})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = parseHeaderFlags([]string{" : value"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAppGraph(t *testing.T) {
	for _, broker := range []bool{false, true} {
		cfg := config.Default()
		cfg.Auth.Enabled = false
		cfg.Broker.Enabled = broker

		err := fx.ValidateApp(appOptions(cfg)...)
		assert.NoError(t, err, "broker enabled: %v", broker)
	}
}
