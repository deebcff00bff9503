package options

import (
	"fmt"
	"sort"

	"github.com/xbuild/xbuild/pkg/engine"
)

// ArtefactProperties are the descriptor properties of an artefact object.
var ArtefactProperties = []string{"type", "name", "prefix", "suffix", "extension"}

// StringList decodes a descriptor value that may be a single string or an
// array of strings. subject names the offending property in errors.
func StringList(v any, subject string) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []string:
		return copyStrings(val), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, notStringList(subject)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, notStringList(subject)
}

func notStringList(subject string) error {
	return engine.NewSchemaError(
		fmt.Sprintf("'%s' must be a string or an array of strings", subject),
		nil,
	).WithCode(engine.ErrCodeTypeMismatch).WithSubject(subject)
}

// String decodes a descriptor value that must be a string.
func String(v any, subject string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", engine.NewSchemaError(
			fmt.Sprintf("'%s' must be a string", subject),
			nil,
		).WithCode(engine.ErrCodeTypeMismatch).WithSubject(subject)
	}
	return s, nil
}

// Object decodes a descriptor value that must be an object.
func Object(v any, subject string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, engine.NewSchemaError(
			fmt.Sprintf("'%s' must be an object", subject),
			nil,
		).WithCode(engine.ErrCodeTypeMismatch).WithSubject(subject)
	}
	return m, nil
}

// SortedKeys returns the keys of m in lexicographic order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ArtefactFromMap decodes an artefact object. Unknown properties are
// returned so the caller can report them.
func ArtefactFromMap(m map[string]any, subject string) (*Artefact, []string, error) {
	a := &Artefact{}
	targets := map[string]**string{
		"type":      &a.Type,
		"name":      &a.Name,
		"prefix":    &a.Prefix,
		"suffix":    &a.Suffix,
		"extension": &a.Extension,
	}

	var ignored []string
	for _, key := range SortedKeys(m) {
		dst, ok := targets[key]
		if !ok {
			ignored = append(ignored, key)
			continue
		}
		s, err := String(m[key], subject+"."+key)
		if err != nil {
			return nil, nil, err
		}
		*dst = Str(s)
	}
	return a, ignored, nil
}
