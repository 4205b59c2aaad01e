package geocode

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed sg_areas.yaml
var sgAreasYAML []byte

// Area is one curated local area.
type Area struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Lat     float64  `yaml:"lat"`
	Lng     float64  `yaml:"lng"`
}

// AreaTable indexes areas by folded name and alias.
type AreaTable struct {
	byKey map[string]Area
}

// ParseAreas loads an area table from YAML of the form {areas: [...]}.
func ParseAreas(data []byte) (*AreaTable, error) {
	var doc struct {
		Areas []Area `yaml:"areas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "geocode: parse areas")
	}
	t := &AreaTable{byKey: make(map[string]Area, len(doc.Areas)*2)}
	for i, a := range doc.Areas {
		if a.Name == "" {
			return nil, eris.Errorf("geocode: area %d has no name", i)
		}
		for _, k := range append([]string{a.Name}, a.Aliases...) {
			key := areaKey(k)
			if _, dup := t.byKey[key]; dup {
				return nil, eris.Errorf("geocode: duplicate area key %q", k)
			}
			t.byKey[key] = a
		}
	}
	return t, nil
}

// DefaultAreas returns the embedded Singapore table.
func DefaultAreas() *AreaTable {
	t, err := ParseAreas(sgAreasYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup matches a query against area names and aliases exactly, ignoring
// case and spacing.
func (t *AreaTable) Lookup(q string) (Area, bool) {
	if t == nil {
		return Area{}, false
	}
	a, ok := t.byKey[areaKey(q)]
	return a, ok
}

// Len reports the number of indexed keys.
func (t *AreaTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byKey)
}

func areaKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
