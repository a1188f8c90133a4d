package fieldspec

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/DuyanhLexq/TikTokAPI/internal/extract"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// Kind names one record family and the file its field paths live in
type Kind string

const (
	KindComment Kind = "comments_path.yaml"
	KindVideo   Kind = "video_details_path.yaml"
	KindUser    Kind = "user_info_path.yaml"
)

var kinds = []Kind{KindComment, KindVideo, KindUser}

// FieldSpec is the ordered field to path mapping for one record kind
type FieldSpec = extract.Spec

// Set holds the field specs of all record kinds
type Set struct {
	Comment FieldSpec
	Video   FieldSpec
	User    FieldSpec
}

// ErrInvalidSpec is returned for documents that are not a flat string mapping
var ErrInvalidSpec = errors.New("invalid field spec")

// Parse reads a YAML mapping of field name to path. Document order is kept.
func Parse(data []byte) (FieldSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return FieldSpec{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping (line %d)", ErrInvalidSpec, root.Line)
	}

	spec := make(FieldSpec, 0, len(root.Content)/2)
	seen := make(map[string]bool, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: field at line %d must map a name to a path", ErrInvalidSpec, key.Line)
		}
		if seen[key.Value] {
			return nil, fmt.Errorf("%w: duplicate field %q (line %d)", ErrInvalidSpec, key.Value, key.Line)
		}
		seen[key.Value] = true
		spec = append(spec, extract.Field{Name: key.Value, Path: extract.ParsePath(value.Value)})
	}
	return spec, nil
}

// LoadDefaults returns the field specs compiled into the binary
func LoadDefaults() (*Set, error) {
	return LoadDir("")
}

// LoadDir loads field specs, preferring files found in dir over the
// embedded defaults. An empty dir uses only the defaults.
func LoadDir(dir string) (*Set, error) {
	set := &Set{}
	for _, kind := range kinds {
		data, err := read(dir, kind)
		if err != nil {
			return nil, err
		}
		spec, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", kind, err)
		}
		set.assign(kind, spec)
	}
	return set, nil
}

func read(dir string, kind Kind) ([]byte, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, string(kind)))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", kind, err)
		}
	}

	data, err := defaults.ReadFile("defaults/" + string(kind))
	if err != nil {
		return nil, fmt.Errorf("read embedded %s: %w", kind, err)
	}
	return data, nil
}

func (s *Set) assign(kind Kind, spec FieldSpec) {
	switch kind {
	case KindComment:
		s.Comment = spec
	case KindVideo:
		s.Video = spec
	case KindUser:
		s.User = spec
	}
}
