package config

import (
	"errors"
	"os"

	"github.com/webitel/im-tag-router/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// ApplicationConfig is one raw entry of the application table. Pointers
// distinguish a missing property from a zero value.
type ApplicationConfig struct {
	Key           *string `yaml:"key"           mapstructure:"key"`
	Secret        *string `yaml:"secret"        mapstructure:"secret"`
	AuthorizeOpen *bool   `yaml:"authorizeOpen" mapstructure:"authorizeopen"`
}

type applicationsFile struct {
	Applications *[]ApplicationConfig `yaml:"applications"`
}

// LoadApplications reads a YAML application table:
//
//	applications:
//	  - key: app1
//	    secret: s3cr3t
//	    authorizeOpen: false
//
// Every failure is an ErrConfiguration.
func LoadApplications(path string) ([]ApplicationConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.Configurationf("config.applications", "the configuration file '%s' does not exist", path)
		}
		return nil, model.Configurationf("config.applications", "failed to stat '%s'", path).WithCause(err)
	}
	if !info.Mode().IsRegular() {
		return nil, model.Configurationf("config.applications", "the configuration file '%s' is not a valid file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.Configurationf("config.applications", "failed to open configuration file '%s'", path).WithCause(err)
	}
	return ParseApplications(data)
}

// ParseApplications decodes the YAML application table.
func ParseApplications(data []byte) ([]ApplicationConfig, error) {
	var doc applicationsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, model.Configurationf("config.applications", "invalid configuration provided").WithCause(err)
	}
	if doc.Applications == nil {
		return nil, model.Configurationf("config.applications", "no 'applications' key found in provided configuration")
	}
	return *doc.Applications, nil
}

// ToApplications validates raw entries. The 1-based position is reported for
// the first entry missing a property.
func ToApplications(raw []ApplicationConfig) ([]model.Application, error) {
	out := make([]model.Application, 0, len(raw))
	for i, a := range raw {
		switch {
		case a.Key == nil:
			return nil, model.Configurationf("config.applications", "no 'key' property found in application '%d'", i+1)
		case a.Secret == nil:
			return nil, model.Configurationf("config.applications", "no 'secret' property found in application '%d'", i+1)
		case a.AuthorizeOpen == nil:
			return nil, model.Configurationf("config.applications", "no 'authorizeOpen' property found in application '%d'", i+1)
		}
		out = append(out, model.Application{
			Key:           *a.Key,
			Secret:        *a.Secret,
			AuthorizeOpen: *a.AuthorizeOpen,
		})
	}
	return out, nil
}
