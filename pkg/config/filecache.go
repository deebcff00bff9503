package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xbuild/xbuild/pkg/engine"
)

// FileCache memoizes decoded descriptor files and directory listings by
// absolute path. Entries live until Clear.
type FileCache struct {
	mu       sync.Mutex
	docs     map[string]*Document
	dirs     map[string][]fs.DirEntry
	cue      *CUELoader
	observer engine.CacheObserver
}

// NewFileCache creates an empty cache.
func NewFileCache() *FileCache {
	return &FileCache{
		docs:     make(map[string]*Document),
		dirs:     make(map[string][]fs.DirEntry),
		cue:      NewCUELoader(),
		observer: engine.NopCacheObserver{},
	}
}

// SetObserver installs the observer notified of cache lookups.
func (c *FileCache) SetObserver(observer engine.CacheObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if observer == nil {
		observer = engine.NopCacheObserver{}
	}
	c.observer = observer
}

// Clear drops every cached entry.
func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = make(map[string]*Document)
	c.dirs = make(map[string][]fs.DirEntry)
}

// ReadDocument returns the decoded descriptor at path. The format is chosen
// from the file extension; unknown extensions are read as JSON.
func (c *FileCache) ReadDocument(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, engine.NewIOError("failed to resolve path", err).WithSubject(path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if doc, ok := c.docs[abs]; ok {
		c.observer.ObserveCacheLookup(engine.CacheFiles, true)
		return doc, nil
	}
	c.observer.ObserveCacheLookup(engine.CacheFiles, false)

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, ioError("failed to read file", abs, err)
	}

	doc, err := c.decode(abs, content)
	if err != nil {
		return nil, err
	}
	c.docs[abs] = doc
	return doc, nil
}

// ReadDir returns the entries of the directory at path, sorted by name.
func (c *FileCache) ReadDir(path string) ([]fs.DirEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, engine.NewIOError("failed to resolve path", err).WithSubject(path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entries, ok := c.dirs[abs]; ok {
		c.observer.ObserveCacheLookup(engine.CacheFiles, true)
		return entries, nil
	}
	c.observer.ObserveCacheLookup(engine.CacheFiles, false)

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, ioError("failed to read directory", abs, err)
	}
	c.dirs[abs] = entries
	return entries, nil
}

func ioError(message, path string, err error) *engine.EngineError {
	code := engine.ErrCodeNotFound
	if !errors.Is(err, fs.ErrNotExist) {
		code = ""
	}
	return engine.NewIOError(message, err).WithSubject(path).WithCode(code)
}

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cue":
		return FormatCUE
	}
	return FormatJSON
}

func (c *FileCache) decode(path string, content []byte) (*Document, error) {
	doc := &Document{
		Path:   path,
		Format: formatOf(path),
		Raw:    content,
		ReadAt: time.Now(),
	}

	var err error
	switch doc.Format {
	case FormatYAML:
		err = yaml.Unmarshal(content, &doc.Data)
	case FormatCUE:
		data, errs := c.cue.ExportJSON(path, content)
		if len(errs) > 0 {
			return nil, engine.NewParseError(fmt.Sprintf("failed to parse %s: %s", filepath.Base(path), summarize(errs)), nil).
				WithCode(engine.ErrCodeSyntax).WithSubject(path).WithDetail("errors", errs)
		}
		doc.Raw = data
		err = json.Unmarshal(data, &doc.Data)
	default:
		err = json.Unmarshal(content, &doc.Data)
	}
	if err != nil {
		return nil, engine.NewParseError(fmt.Sprintf("failed to parse %s", filepath.Base(path)), err).
			WithCode(engine.ErrCodeSyntax).WithSubject(path)
	}
	if doc.Data == nil {
		doc.Data = make(map[string]any)
	}
	return doc, nil
}

// ObjectKeys returns the keys of the object found by following path from
// the document root, in the order they appear in the file. It returns nil
// when the path is absent or does not lead to an object.
func (d *Document) ObjectKeys(path ...string) ([]string, error) {
	if d.Format == FormatYAML {
		return yamlObjectKeys(d.Raw, path)
	}
	return JSONObjectKeys(d.Raw, path...)
}

func yamlObjectKeys(raw []byte, path []string) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	node := root.Content[0]
	for _, field := range path {
		if node.Kind != yaml.MappingNode {
			return nil, nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == field {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil, nil
		}
		node = next
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil
	}

	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys, nil
}

// JSONObjectKeys returns the keys of the object found by following path
// in raw JSON, in file order. It returns nil when the path is absent or
// does not lead to an object.
func JSONObjectKeys(raw []byte, path ...string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	for depth := 0; ; depth++ {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if tok != json.Delim('{') {
			return nil, nil
		}

		if depth == len(path) {
			var keys []string
			for dec.More() {
				key, err := nextKey(dec)
				if err != nil {
					return nil, err
				}
				keys = append(keys, key)
				if err := skipValue(dec); err != nil {
					return nil, err
				}
			}
			return keys, nil
		}

		found := false
		for dec.More() {
			key, err := nextKey(dec)
			if err != nil {
				return nil, err
			}
			if key == path[depth] {
				found = true
				break
			}
			if err := skipValue(dec); err != nil {
				return nil, err
			}
		}
		if !found {
			return nil, nil
		}
	}
}

func nextKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, _ := tok.(string)
	return key, nil
}

func skipValue(dec *json.Decoder) error {
	var skip json.RawMessage
	return dec.Decode(&skip)
}
