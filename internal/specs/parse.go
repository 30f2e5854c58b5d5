package specs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Specs is a parsed threshold tree. Keys keep their file order so tests are
// reported in the order they were written.
type Specs struct {
	Defaults Defaults
	root     *yaml.Node
}

// Defaults is the optional top-level "defaults" entry
type Defaults struct {
	SuiteName string `yaml:"suiteName"`
	Text      string `yaml:"text"`
	Operation string `yaml:"operation"`
}

// ParseError reports specs that could not be read or parsed
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "SpecsParserError: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads specs from a file when raw names an existing file, otherwise
// parses raw itself. JSON (with comments) and YAML are accepted.
func Load(raw string) (*Specs, error) {
	data := []byte(raw)
	ext := ""
	if info, err := os.Stat(raw); err == nil && !info.IsDir() {
		if data, err = os.ReadFile(raw); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("failed to read specs file: %w", err)}
		}
		ext = strings.ToLower(filepath.Ext(raw))
	}
	return Parse(data, ext)
}

// Parse parses specs text. ext selects the format of a file (".yaml",
// ".yml", ".json", ".jsonc"); when empty the content decides.
func Parse(data []byte, ext string) (*Specs, error) {
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, &ParseError{Err: errors.New("empty specs")}
	}

	switch ext {
	case ".yaml", ".yml":
	default:
		// JSON is a subset of YAML once comments and trailing commas are gone
		if ext != "" || strings.HasPrefix(content, "{") {
			data = jsonc.ToJSON(data)
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, &ParseError{Err: errors.New("specs must be an object")}
	}

	s := &Specs{root: doc.Content[0]}
	if d := lookup(s.root, "defaults"); d != nil {
		if err := d.Decode(&s.Defaults); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("invalid defaults: %w", err)}
		}
	}
	return s, nil
}

// lookup returns the value node of key in a mapping node
func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
