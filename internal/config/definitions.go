package config

import (
	"io/fs"
	"path"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/tieout/internal/embedded"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// AuthKind names how a source authenticates.
type AuthKind string

// Supported authentication kinds.
const (
	AuthOAuth AuthKind = "oauth" // interactive browser flow with refresh
	AuthBasic AuthKind = "basic" // static account/license pair
	AuthToken AuthKind = "token" // static access token header
)

// Definition holds the built-in, non-secret connection defaults for one
// remote source.
type Definition struct {
	ID           record.SourceID `yaml:"id"`
	Name         string          `yaml:"name"`
	Auth         AuthKind        `yaml:"auth"`
	AuthorizeURL string          `yaml:"authorize_url"`
	TokenURL     string          `yaml:"token_url"`
	BaseURL      string          `yaml:"base_url"`
	APIVersion   string          `yaml:"api_version"`
	PageSize     int             `yaml:"page_size"`
}

// definitionsFile is the on-disk shape of one embedded yaml file.
type definitionsFile struct {
	Sources []Definition `yaml:"sources"`
}

// Definitions parses the embedded source definitions. The result maps
// source ID to its definition.
func Definitions() (map[record.SourceID]Definition, error) {
	entries, err := fs.ReadDir(embedded.FS, embedded.DefinitionsPath)
	if err != nil {
		return nil, errors.NewConfigError("definitions", "reading embedded definitions", err)
	}

	defs := make(map[record.SourceID]Definition)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := fs.ReadFile(embedded.FS, path.Join(embedded.DefinitionsPath, entry.Name()))
		if err != nil {
			return nil, errors.NewConfigError("definitions", "reading "+entry.Name(), err)
		}

		var file definitionsFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, errors.NewConfigError("definitions", "parsing "+entry.Name(), err)
		}
		for _, def := range file.Sources {
			if def.ID == "" {
				return nil, errors.NewConfigError("definitions", "source with empty id in "+entry.Name(), nil)
			}
			if _, dup := defs[def.ID]; dup {
				return nil, errors.NewConfigError("definitions", "duplicate source id "+def.ID.String(), nil)
			}
			defs[def.ID] = def
		}
	}
	return defs, nil
}
