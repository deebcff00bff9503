package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLoader() *Loader {
	return NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := newTestLoader()

	policyFile := filepath.Join(t.TempDir(), "test-policy.rego")
	regoContent := `# Rejects artefacts named invalid

package test.policy

import rego.v1

deny contains msg if {
	input.configuration.artefact.name == "invalid"
	msg := "Invalid artefact name"
}`
	writeFile(t, policyFile, regoContent)

	policies, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(policies))
	}

	policy := policies[0]
	if policy.Name != "test-policy" {
		t.Errorf("expected name 'test-policy', got '%s'", policy.Name)
	}
	if policy.Rego != regoContent {
		t.Error("Rego content doesn't match")
	}
	if policy.Description != "Rejects artefacts named invalid" {
		t.Errorf("unexpected description %q", policy.Description)
	}
	if !policy.Enabled {
		t.Error("policy should be enabled by default")
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("expected default severity warning, got %s", policy.Severity)
	}
	if policy.Source != policyFile {
		t.Errorf("expected source %s, got %s", policyFile, policy.Source)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := newTestLoader()

	policyFile := filepath.Join(t.TempDir(), "test-policy.json")
	policy := Policy{
		Name:        "test-json-policy",
		Description: "A test policy",
		Rego:        "package test\n\nimport rego.v1\n\ndeny contains msg if { false; msg := \"\" }",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"test"},
	}

	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatalf("failed to marshal policy: %v", err)
	}
	writeFile(t, policyFile, string(data))

	loaded, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(loaded))
	}

	if loaded[0].Name != policy.Name {
		t.Errorf("expected name '%s', got '%s'", policy.Name, loaded[0].Name)
	}
	if loaded[0].Description != policy.Description {
		t.Errorf("expected description '%s', got '%s'", policy.Description, loaded[0].Description)
	}
	if loaded[0].Severity != policy.Severity {
		t.Errorf("expected severity '%s', got '%s'", policy.Severity, loaded[0].Severity)
	}
}

func TestLoadFromFile_Bundle(t *testing.T) {
	loader := newTestLoader()

	bundle := Bundle{
		Name:    "firmware",
		Version: "1.0.0",
		Policies: []Policy{
			{Name: "first", Rego: "package first", Enabled: true},
			{Name: "second", Rego: "package second", Severity: SeverityInfo},
		},
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("failed to marshal bundle: %v", err)
	}

	bundleFile := filepath.Join(t.TempDir(), "bundle.json")
	writeFile(t, bundleFile, string(data))

	loaded, err := loader.loadFromFile(context.Background(), bundleFile)
	if err != nil {
		t.Fatalf("failed to load bundle: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(loaded))
	}
	if loaded[0].Severity != SeverityWarning {
		t.Errorf("expected default severity on first policy, got %s", loaded[0].Severity)
	}
	if loaded[1].Severity != SeverityInfo {
		t.Errorf("expected info severity on second policy, got %s", loaded[1].Severity)
	}
	for _, p := range loaded {
		if p.Source != bundleFile {
			t.Errorf("expected source %s on %s, got %s", bundleFile, p.Name, p.Source)
		}
	}
}

func TestLoadFromDirectory(t *testing.T) {
	loader := newTestLoader()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), "package a")
	writeFile(t, filepath.Join(dir, "nested", "deeper", "b.rego"), "package b")
	writeFile(t, filepath.Join(dir, "nested", "c.json"), `{"name": "c", "rego": "package c"}`)
	writeFile(t, filepath.Join(dir, "README.md"), "not a policy")
	writeFile(t, filepath.Join(dir, "broken.json"), "{not json")

	policies, err := loader.loadFromDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("failed to load directory: %v", err)
	}

	if len(policies) != 3 {
		t.Fatalf("expected 3 policies, got %d", len(policies))
	}

	names := map[string]bool{}
	for _, p := range policies {
		names[p.Name] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !names[want] {
			t.Errorf("expected policy %s to be loaded", want)
		}
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := newTestLoader()

	dir := t.TempDir()
	file := filepath.Join(dir, "single.rego")
	writeFile(t, file, "package single")
	other := filepath.Join(dir, "more")
	writeFile(t, filepath.Join(other, "x.rego"), "package x")
	writeFile(t, filepath.Join(other, "y.rego"), "package y")

	policies, err := loader.LoadFromPaths(context.Background(), []string{file, other})
	if err != nil {
		t.Fatalf("failed to load paths: %v", err)
	}
	if len(policies) != 3 {
		t.Errorf("expected 3 policies, got %d", len(policies))
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "single line",
			content:  "# Checks toolchains\npackage a",
			expected: "Checks toolchains",
		},
		{
			name:     "multiple lines",
			content:  "# Checks toolchains\n# for firmware builds\n\npackage a",
			expected: "Checks toolchains for firmware builds",
		},
		{
			name:     "stops at code",
			content:  "# Header\npackage a\n# trailing comment",
			expected: "Header",
		},
		{
			name:     "no comments",
			content:  "package a",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDescription(tt.content); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestClearCache(t *testing.T) {
	loader := newTestLoader()

	file := filepath.Join(t.TempDir(), "cached.rego")
	writeFile(t, file, "# Before\npackage cached")

	if _, err := loader.loadFromFile(context.Background(), file); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}

	writeFile(t, file, "# After\npackage cached")

	policies, _ := loader.loadFromFile(context.Background(), file)
	if policies[0].Description != "Before" {
		t.Errorf("expected cached description, got %q", policies[0].Description)
	}

	loader.ClearCache()

	policies, err := loader.loadFromFile(context.Background(), file)
	if err != nil {
		t.Fatalf("failed to reload policy: %v", err)
	}
	if policies[0].Description != "After" {
		t.Errorf("expected fresh description, got %q", policies[0].Description)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "policy.txt"), "package a")
	writeFile(t, filepath.Join(dir, "invalid.json"), "{invalid")
	writeFile(t, filepath.Join(dir, "unnamed.json"), `{"rego": "package a"}`)

	tests := []struct {
		name string
		file string
	}{
		{name: "unsupported type", file: "policy.txt"},
		{name: "invalid JSON", file: "invalid.json"},
		{name: "policy without name", file: "unnamed.json"},
		{name: "missing file", file: "missing.rego"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newTestLoader()
			if _, err := loader.loadFromFile(context.Background(), filepath.Join(dir, tt.file)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	loader := newTestLoader()

	_, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Error("expected an error for a missing path")
	}
}
