package searchdata

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

const manifestSchemaURL = "https://doxsearch.dev/schema/manifest.json"

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

var (
	manifestSchemaOnce sync.Once
	manifestSchema     *jsonschema.Schema
	manifestSchemaErr  error
)

// Manifest lists the symbols of one documentation set
type Manifest struct {
	Project string   `json:"project,omitempty" yaml:"project,omitempty"`
	Version string   `json:"version,omitempty" yaml:"version,omitempty"`
	Symbols []Symbol `json:"symbols" yaml:"symbols"`
}

// SchemaProblem is one schema violation in a manifest
type SchemaProblem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ManifestError is returned when a manifest does not match the manifest schema
type ManifestError struct {
	Problems []SchemaProblem
}

func (e *ManifestError) Error() string {
	if len(e.Problems) == 0 {
		return "manifest does not match schema"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Path+": "+p.Message)
	}
	return fmt.Sprintf("manifest does not match schema: %s", strings.Join(parts, "; "))
}

func compiledManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(manifestSchemaJSON, &doc); err != nil {
			manifestSchemaErr = fmt.Errorf("invalid manifest schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(manifestSchemaURL, doc); err != nil {
			manifestSchemaErr = fmt.Errorf("failed to add manifest schema: %w", err)
			return
		}
		manifestSchema, manifestSchemaErr = compiler.Compile(manifestSchemaURL)
	})
	return manifestSchema, manifestSchemaErr
}

// LoadManifest reads a YAML or JSON manifest from disk
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseManifest validates data against the manifest schema and decodes it.
// JSON is accepted as well since it is a subset of YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid manifest syntax: %w", err)
	}
	if doc == nil {
		return nil, &ManifestError{Problems: []SchemaProblem{{Path: "$", Message: "manifest is empty"}}}
	}

	// Normalize through JSON so the validator sees JSON types only
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("manifest is not JSON-compatible: %w", err)
	}
	var instance any
	if err := json.Unmarshal(normalized, &instance); err != nil {
		return nil, fmt.Errorf("manifest is not JSON-compatible: %w", err)
	}

	schema, err := compiledManifestSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			printer := message.NewPrinter(language.English)
			return nil, &ManifestError{Problems: schemaProblems(validationErr, printer)}
		}
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(normalized, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// schemaProblems flattens a validation error tree into its leaf causes
func schemaProblems(validationErr *jsonschema.ValidationError, printer *message.Printer) []SchemaProblem {
	if len(validationErr.Causes) == 0 {
		path := "$"
		if len(validationErr.InstanceLocation) > 0 {
			path = "$." + strings.Join(validationErr.InstanceLocation, ".")
		}
		return []SchemaProblem{{Path: path, Message: validationErr.ErrorKind.LocalizedString(printer)}}
	}

	var problems []SchemaProblem
	for _, cause := range validationErr.Causes {
		problems = append(problems, schemaProblems(cause, printer)...)
	}
	return problems
}

// MarshalManifest renders a manifest as YAML
func MarshalManifest(m *Manifest) ([]byte, error) {
	return yaml.Marshal(m)
}
