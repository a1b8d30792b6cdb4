// internal/architecture/contracts.go
package architecture

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Endpoint is one route of an API contract.
type Endpoint struct {
	Path   string `yaml:"path" validate:"required"`
	Method string `yaml:"method" validate:"required"`
}

// Contract is an API contract.
type Contract struct {
	Name        string     `yaml:"name" validate:"required"`
	Description string     `yaml:"description,omitempty"`
	Endpoints   []Endpoint `yaml:"endpoints"`
}

// SchemaField is one field of a data schema.
type SchemaField struct {
	Name        string   `yaml:"name" validate:"required"`
	Type        string   `yaml:"type" validate:"required"`
	Constraints []string `yaml:"constraints,omitempty"`
}

// Schema is a data schema.
type Schema struct {
	Name        string        `yaml:"name" validate:"required"`
	Description string        `yaml:"description,omitempty"`
	Fields      []SchemaField `yaml:"fields"`
}

const parseYAMLFormat = "Failed to parse YAML: %v"

// LoadContracts loads contracts.yaml. A missing file yields no contracts.
func LoadContracts(projectDir string) ([]Contract, error) {
	data, items, err := readDocument(FilePath(projectDir, ContractsFile), ContractsFile, "contracts", "contract", parseYAMLFormat)
	if err != nil || data == nil {
		return nil, err
	}
	for i, c := range items {
		if err := checkNested(ContractsFile, "Contract", i, c, "endpoints", "endpoint"); err != nil {
			return nil, err
		}
	}

	var doc struct {
		Contracts []Contract `yaml:"contracts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid(ContractsFile, parseYAMLFormat, err)
	}
	for i, c := range doc.Contracts {
		if missing := missingFields(c); len(missing) > 0 {
			return nil, invalid(ContractsFile, "Contract at index %d missing required field: %s", i, strings.Join(missing, ", "))
		}
		for j, ep := range c.Endpoints {
			if missing := missingFields(ep); len(missing) > 0 {
				return nil, invalid(ContractsFile, "Contract '%s' endpoint at index %d missing: %s", c.Name, j, missing[0])
			}
		}
	}
	return doc.Contracts, nil
}

// LoadSchemas loads schemas.yaml. A missing file yields no schemas.
func LoadSchemas(projectDir string) ([]Schema, error) {
	data, items, err := readDocument(FilePath(projectDir, SchemasFile), SchemasFile, "schemas", "schema", parseYAMLFormat)
	if err != nil || data == nil {
		return nil, err
	}
	for i, s := range items {
		if err := checkNested(SchemasFile, "Schema", i, s, "fields", "field"); err != nil {
			return nil, err
		}
	}

	var doc struct {
		Schemas []Schema `yaml:"schemas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid(SchemasFile, parseYAMLFormat, err)
	}
	for i, s := range doc.Schemas {
		if missing := missingFields(s); len(missing) > 0 {
			return nil, invalid(SchemasFile, "Schema at index %d missing required field: %s", i, strings.Join(missing, ", "))
		}
		for j, f := range s.Fields {
			if missing := missingFields(f); len(missing) > 0 {
				return nil, invalid(SchemasFile, "Schema '%s' field at index %d missing: %s", s.Name, j, missing[0])
			}
		}
	}
	return doc.Schemas, nil
}

// checkNested verifies item[key] is a list of mappings when present.
func checkNested(file, kind string, index int, item map[string]any, key, childLabel string) error {
	name, _ := item["name"].(string)
	if _, ok := item["name"]; !ok {
		return invalid(file, "%s at index %d missing required field: name", kind, index)
	}
	raw, present := item[key]
	if !present || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return invalid(file, "%s '%s' has invalid '%s': expected list", kind, name, key)
	}
	for j, child := range list {
		if _, ok := child.(map[string]any); !ok {
			return invalid(file, "%s '%s' %s at index %d: expected dict", kind, name, childLabel, j)
		}
	}
	return nil
}
