package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type recordingObserver struct {
	lookups []bool
}

func (o *recordingObserver) ObserveCacheLookup(_ string, hit bool) {
	o.lookups = append(o.lookups, hit)
}

func TestFileCache_Memoizes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "package.json"), `{"name": "a"}`)

	cache := NewFileCache()
	obs := &recordingObserver{}
	cache.SetObserver(obs)

	first, err := cache.ReadDocument(path)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}

	// The cached value survives the file changing on disk.
	writeFile(t, path, `{"name": "b"}`)
	second, err := cache.ReadDocument(path)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if first != second || second.Data["name"] != "a" {
		t.Errorf("expected the cached document, got %v", second.Data)
	}
	if !reflect.DeepEqual(obs.lookups, []bool{false, true}) {
		t.Errorf("unexpected lookups %v", obs.lookups)
	}

	cache.Clear()
	third, err := cache.ReadDocument(path)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if third.Data["name"] != "b" {
		t.Errorf("expected a fresh read after Clear, got %v", third.Data)
	}
}

func TestFileCache_ReadDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b", "a"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatalf("failed to create folder: %v", err)
		}
	}

	cache := NewFileCache()
	entries, err := cache.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 2 || entries[0].Name() != "a" {
		t.Errorf("unexpected entries %v", entries)
	}

	if _, err := cache.ReadDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestDocument_ObjectKeys(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		want []string
	}{
		{
			name: "json",
			doc:  &Document{Format: FormatJSON, Raw: []byte(`{"a": {"x": [1, {"y": 2}]}, "deps": {"z": "1", "b": "2"}}`)},
			want: []string{"z", "b"},
		},
		{
			name: "yaml",
			doc:  &Document{Format: FormatYAML, Raw: []byte("deps:\n  z: '1'\n  b: '2'\nother: 1\n")},
			want: []string{"z", "b"},
		},
		{
			name: "absent",
			doc:  &Document{Format: FormatJSON, Raw: []byte(`{"a": 1}`)},
			want: nil,
		},
		{
			name: "not an object",
			doc:  &Document{Format: FormatJSON, Raw: []byte(`{"deps": ["z"]}`)},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.doc.ObjectKeys("deps")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDocument_ObjectKeysNested(t *testing.T) {
	const jsonDoc = `{
  "toolchains": {
    "gcc": {"parent": "x"},
    "mine": {"tools": {"zcc": {"a": [1, 2]}, "acc": {}, "mcc": {"tools": {"q": 1}}}}
  }
}`
	const yamlDoc = `toolchains:
  gcc:
    parent: x
  mine:
    tools:
      zcc: {a: [1, 2]}
      acc: {}
      mcc: {}
`
	docs := map[string]*Document{
		"json": {Format: FormatJSON, Raw: []byte(jsonDoc)},
		"yaml": {Format: FormatYAML, Raw: []byte(yamlDoc)},
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			got, err := doc.ObjectKeys("toolchains", "mine", "tools")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := []string{"zcc", "acc", "mcc"}; !reflect.DeepEqual(got, want) {
				t.Errorf("expected %v, got %v", want, got)
			}

			missing, err := doc.ObjectKeys("toolchains", "gcc", "tools")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if missing != nil {
				t.Errorf("expected nil for an absent path, got %v", missing)
			}

			scalar, err := doc.ObjectKeys("toolchains", "gcc", "parent")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scalar != nil {
				t.Errorf("expected nil for a scalar, got %v", scalar)
			}
		})
	}
}

func TestIsDescriptor(t *testing.T) {
	for path, want := range map[string]bool{
		"/p/xmake.json":            true,
		"/p/xmake.cue":             true,
		"/p/xpacks/a/package.json": true,
		"/p/src/main.c":            false,
	} {
		if got := IsDescriptor(path); got != want {
			t.Errorf("IsDescriptor(%s) = %v, want %v", path, got, want)
		}
	}
}
