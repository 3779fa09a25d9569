package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Store loads the current security settings. Load is called once per
// decision so implementations must not cache stale documents.
type Store interface {
	Load() (Settings, error)
}

// StaticStore serves a fixed settings value.
type StaticStore struct {
	Settings Settings
}

func (s StaticStore) Load() (Settings, error) {
	return s.Settings, nil
}

// FileStore reads a YAML settings document from disk on every Load and
// validates it against the settings schema before accepting it.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load() (Settings, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings document: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Settings{}, fmt.Errorf("decode settings document: %w", err)
	}

	schema, err := settingsSchema()
	if err != nil {
		return Settings{}, fmt.Errorf("compile settings schema: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return Settings{}, fmt.Errorf("settings document invalid: %w", err)
	}

	var out Settings
	if err := json.Unmarshal(payload, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings document: %w", err)
	}
	return out, nil
}

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "autoDenyCritical": {"type": "boolean"},
    "autoDenyPrivilegeEscalation": {"type": "boolean"},
    "readOnlyProjects": {"type": "boolean"},
    "requireTypeToCritical": {"type": "boolean"},
    "commandAllowlist": {"type": "array", "items": {"type": "string"}},
    "commandDenylist": {"type": "array", "items": {"type": "string"}},
    "allowedDomains": {"type": "array", "items": {"type": "string"}}
  }
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func settingsSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaCompiled, schemaErr = jsonschema.CompileString("settings.schema.json", schemaJSON)
	})
	return schemaCompiled, schemaErr
}
