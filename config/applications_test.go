package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

func TestLoadApplications(t *testing.T) {
	path := writeFile(t, "apps.yml", `
applications:
  - key: app1
    secret: S
    authorizeOpen: false
  - key: app2
    secret: T
    authorizeOpen: true
`)

	raw, err := LoadApplications(path)
	require.NoError(t, err)

	apps, err := ToApplications(raw)
	require.NoError(t, err)
	assert.Equal(t, []model.Application{
		{Key: "app1", Secret: "S", AuthorizeOpen: false},
		{Key: "app2", Secret: "T", AuthorizeOpen: true},
	}, apps)
}

func TestLoadApplications_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadApplications("/definitely/not/here.yml")
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := LoadApplications(t.TempDir())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("no applications key", func(t *testing.T) {
		_, err := LoadApplications(writeFile(t, "a.yml", "other: 1\n"))
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := LoadApplications(writeFile(t, "a.yml", "applications: [\n"))
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})
}

func TestToApplications_MissingProperties(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "key", yaml: "applications:\n  - secret: S\n    authorizeOpen: true\n", want: "'key'"},
		{name: "secret", yaml: "applications:\n  - key: k\n    authorizeOpen: true\n", want: "'secret'"},
		{name: "authorizeOpen", yaml: "applications:\n  - key: k\n    secret: S\n", want: "'authorizeOpen'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParseApplications([]byte(tt.yaml))
			require.NoError(t, err)

			_, err = ToApplications(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
