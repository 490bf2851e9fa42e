// Package models resolves effective model names against a catalog of known
// model-name families. The catalog is data, not code: an embedded YAML
// document lists glob patterns per family, so the match logic never changes
// when new model names appear.
package models

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

//go:embed families.yaml
var familiesYAML []byte

type catalog struct {
	Families map[string][]string `yaml:"families"`
}

var families map[string][]string

func init() {
	var c catalog
	if err := yaml.Unmarshal(familiesYAML, &c); err != nil {
		panic(fmt.Sprintf("models: parsing embedded catalog: %v", err))
	}
	families = c.Families
}

// Families returns the known family names.
func Families() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	return names
}

// Matches reports whether a model name matches any pattern of the given
// family. Names carrying a path prefix (registry-style names such as
// "library/llama3") are also matched on their last segment.
func Matches(family, name string) bool {
	name = strings.ToLower(name)
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	for _, pattern := range families[family] {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
		if base != name {
			if ok, _ := doublestar.Match(pattern, base); ok {
				return true
			}
		}
	}
	return false
}

// LooksForeign reports whether hint names a model from a family other than
// the given one. A hint unknown to every family is not foreign.
func LooksForeign(family, hint string) bool {
	if hint == "" {
		return false
	}
	for f := range families {
		if f == family {
			continue
		}
		if Matches(f, hint) {
			return true
		}
	}
	return false
}

// Resolve picks the effective model name for a backend: an explicitly
// configured model wins, then the generic request hint unless it looks like
// it names another family, then the backend's fallback default.
func Resolve(family, configured, fallback, hint string) string {
	if configured != "" {
		return configured
	}
	if hint != "" && !LooksForeign(family, hint) {
		return hint
	}
	return fallback
}
