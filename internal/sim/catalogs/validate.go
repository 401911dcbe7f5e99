package catalogs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var catalogFiles = []string{
	"attributes",
	"biomes",
	"factions",
	"items",
	"locations",
	"professions",
	"races",
}

// LoadValidated validates every catalog file against its schema in
// schemaDir before loading. Schema files are named <catalog>.schema.json.
func LoadValidated(configDir, schemaDir string) (*Catalogs, error) {
	if err := ValidateDir(configDir, schemaDir); err != nil {
		return nil, err
	}
	return Load(configDir)
}

func ValidateDir(configDir, schemaDir string) error {
	for _, name := range catalogFiles {
		schemaPath := filepath.Join(schemaDir, name+".schema.json")
		sch, err := jsonschema.Compile(schemaPath)
		if err != nil {
			return fmt.Errorf("compile %s: %w", filepath.Base(schemaPath), err)
		}

		raw, err := os.ReadFile(filepath.Join(configDir, name+".json"))
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("%s.json: %w", name, err)
		}
		if err := sch.Validate(doc); err != nil {
			return fmt.Errorf("%s.json: %w", name, err)
		}
	}
	return nil
}
