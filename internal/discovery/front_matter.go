package discovery

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the YAML header of a SKILL.md file
type FrontMatter struct {
	Name        string   `yaml:"name" json:"name,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Category    string   `yaml:"category" json:"category,omitempty"`
	Tags        []string `yaml:"tags" json:"tags,omitempty"`
	License     string   `yaml:"license" json:"license,omitempty"`
	Version     string   `yaml:"version" json:"version,omitempty"`
}

// ParseFrontMatter reads a leading "---" delimited YAML block from text.
// Malformed headers are ignored.
func ParseFrontMatter(text string) (*FrontMatter, bool) {
	text = strings.ReplaceAll(strings.TrimPrefix(text, "\ufeff"), "\r\n", "\n")
	rest, ok := strings.CutPrefix(text, "---")
	if !ok {
		return nil, false
	}
	rest = strings.TrimLeft(rest, " \t")
	rest, ok = strings.CutPrefix(rest, "\n")
	if !ok {
		return nil, false
	}

	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, false
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return nil, false
	}
	if fm.Name == "" && fm.Description == "" && fm.Category == "" && len(fm.Tags) == 0 {
		return nil, false
	}
	return &fm, true
}
