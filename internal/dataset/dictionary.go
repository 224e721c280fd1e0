package dataset

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed columns.yaml
var columnsYAML []byte

type ColumnInfo struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Aliases     []string `yaml:"aliases"`
}

// Dictionary maps well-known 311 column names and their informal aliases to
// canonical column names so the query executor can resolve whatever the LLM
// writes.
type Dictionary struct {
	Columns []ColumnInfo
	aliases map[string]string
}

func LoadDictionary() (*Dictionary, error) {
	var raw struct {
		Columns []ColumnInfo `yaml:"columns"`
	}
	if err := yaml.Unmarshal(columnsYAML, &raw); err != nil {
		return nil, fmt.Errorf("could not parse column dictionary: %w", err)
	}

	dict := &Dictionary{
		Columns: raw.Columns,
		aliases: make(map[string]string),
	}
	for _, col := range raw.Columns {
		dict.aliases[normalize(col.Name)] = col.Name
		for _, alias := range col.Aliases {
			dict.aliases[normalize(alias)] = col.Name
		}
	}
	return dict, nil
}

// Resolve returns the canonical column name for name, falling back to the
// input when the dictionary has no entry. Frame lookup still decides whether
// the column actually exists.
func (d *Dictionary) Resolve(name string) string {
	if canonical, ok := d.aliases[normalize(name)]; ok {
		return canonical
	}
	return name
}

func (d *Dictionary) Describe(name string) string {
	for _, col := range d.Columns {
		if col.Name == name {
			return col.Description
		}
	}
	return ""
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.Join(strings.Fields(name), " ")
}
