package crops

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed crops.yaml crops.schema.json
var embedded embed.FS

const schemaURL = "crops.schema.json"

type catalogFile struct {
	Crops []Definition `yaml:"crops"`
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	raw, err := embedded.ReadFile(schemaURL)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Default returns the built-in catalog. It panics if the embedded catalog is
// invalid, which only a broken build can cause.
func Default() *Registry {
	raw, err := embedded.ReadFile("crops.yaml")
	if err != nil {
		panic(err)
	}
	r, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads a YAML crop catalog from disk. An empty path loads the built-in catalog.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read crops %s: %v", ErrConfiguration, path, err)
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse validates a YAML catalog against the crop schema and builds a registry.
func Parse(raw []byte) (*Registry, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: compile crop schema: %v", ErrConfiguration, err)
	}

	// Validate the generic document first so schema errors name the offending path.
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: crops yaml: %v", ErrConfiguration, err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: crops yaml: %v", ErrConfiguration, err)
	}
	var generic any
	if err := json.Unmarshal(asJSON, &generic); err != nil {
		return nil, fmt.Errorf("%w: crops yaml: %v", ErrConfiguration, err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("%w: crops yaml: %v", ErrConfiguration, err)
	}
	return NewRegistry(cf.Crops)
}
