package policy

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/xbuild/xbuild/pkg/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}

func cleanConfiguration(name string) engine.ConfigurationSnapshot {
	return engine.ConfigurationSnapshot{
		Name:          name,
		Target:        "stm32f4",
		Profiles:      []string{"debug"},
		Toolchain:     "arm-none-eabi-gcc",
		Language:      "c",
		Tool:          engine.ToolSnapshot{Name: "cLinker", Type: "linker"},
		Artefact:      engine.ArtefactSnapshot{Type: "executable", Name: "blinky", Extension: "elf", FullName: "blinky.elf"},
		SourceFolders: []string{"/work/blinky/src"},
		AddSymbols:    []string{"DEBUG"},
	}
}

func testPlan(configs ...engine.ConfigurationSnapshot) *engine.PlanSnapshot {
	return &engine.PlanSnapshot{
		RunID:          "run-1",
		Project:        "blinky",
		Folder:         "/work/blinky",
		Configurations: configs,
		ResolvedAt:     time.Now(),
	}
}

func violatedPolicies(result *engine.CheckResult) []string {
	seen := map[string]bool{}
	var names []string
	for _, v := range result.Violations {
		if !seen[v.Policy] {
			seen[v.Policy] = true
			names = append(names, v.Policy)
		}
	}
	sort.Strings(names)
	return names
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{"artefact-naming", "debug-symbols", "source-folders", "symbol-conflicts"}
	if len(policies) != len(expected) {
		t.Fatalf("expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("policy %d: expected %s, got %s", i, name, policies[i].Name)
		}
		if !policies[i].Builtin || !policies[i].Enabled {
			t.Errorf("policy %s should be an enabled built-in", name)
		}
	}
}

func TestCheckPlan_Builtins(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name          string
		mutate        func(c *engine.ConfigurationSnapshot)
		expectAllowed bool
		expectPolicy  []string
	}{
		{
			name:          "clean configuration",
			mutate:        func(c *engine.ConfigurationSnapshot) {},
			expectAllowed: true,
		},
		{
			name:          "artefact without a name",
			mutate:        func(c *engine.ConfigurationSnapshot) { c.Artefact.FullName = "" },
			expectAllowed: false,
			expectPolicy:  []string{"artefact-naming"},
		},
		{
			name:          "artefact with a folder",
			mutate:        func(c *engine.ConfigurationSnapshot) { c.Artefact.FullName = "out/blinky.elf" },
			expectAllowed: false,
			expectPolicy:  []string{"artefact-naming"},
		},
		{
			name:          "no source folders",
			mutate:        func(c *engine.ConfigurationSnapshot) { c.SourceFolders = nil },
			expectAllowed: false,
			expectPolicy:  []string{"source-folders"},
		},
		{
			name:          "relative source folder",
			mutate:        func(c *engine.ConfigurationSnapshot) { c.SourceFolders = []string{"/work/blinky/src", "lib"} },
			expectAllowed: false,
			expectPolicy:  []string{"source-folders"},
		},
		{
			name:          "debug profile without DEBUG",
			mutate:        func(c *engine.ConfigurationSnapshot) { c.AddSymbols = []string{"BOARD"} },
			expectAllowed: true,
			expectPolicy:  []string{"debug-symbols"},
		},
		{
			name:          "release profile without DEBUG",
			mutate:        func(c *engine.ConfigurationSnapshot) { c.Profiles = []string{"release"}; c.AddSymbols = nil },
			expectAllowed: true,
		},
		{
			name: "symbol added and removed",
			mutate: func(c *engine.ConfigurationSnapshot) {
				c.AddSymbols = []string{"DEBUG", "BOARD"}
				c.RemoveSymbols = []string{"BOARD"}
			},
			expectAllowed: true,
			expectPolicy:  []string{"symbol-conflicts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cleanConfiguration("debug")
			tt.mutate(&cfg)

			result, err := eng.CheckPlan(context.Background(), testPlan(cfg))
			if err != nil {
				t.Fatalf("check failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("expected allowed=%v, got %v: %+v", tt.expectAllowed, result.Allowed, result.Violations)
			}

			got := violatedPolicies(result)
			if len(got) != len(tt.expectPolicy) {
				t.Fatalf("expected violations of %v, got %+v", tt.expectPolicy, result.Violations)
			}
			for i := range got {
				if got[i] != tt.expectPolicy[i] {
					t.Errorf("expected violation of %s, got %s", tt.expectPolicy[i], got[i])
				}
			}

			for _, v := range result.Violations {
				if v.Configuration != "debug" {
					t.Errorf("expected configuration 'debug', got %q", v.Configuration)
				}
				if v.Message == "" {
					t.Errorf("violation of %s has no message", v.Policy)
				}
			}

			if len(result.Warnings) != 0 {
				t.Errorf("expected no evaluation warnings, got %v", result.Warnings)
			}
		})
	}
}

func TestCheckPlan_Severities(t *testing.T) {
	eng := newTestEngine(t)

	cfg := cleanConfiguration("debug")
	cfg.AddSymbols = []string{"BOARD"}
	cfg.RemoveSymbols = []string{"BOARD"}

	result, err := eng.CheckPlan(context.Background(), testPlan(cfg))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	severities := map[string]string{}
	for _, v := range result.Violations {
		severities[v.Policy] = v.Severity
	}
	if severities["debug-symbols"] != "warning" {
		t.Errorf("expected warning from debug-symbols, got %q", severities["debug-symbols"])
	}
	if severities["symbol-conflicts"] != "info" {
		t.Errorf("expected info from symbol-conflicts, got %q", severities["symbol-conflicts"])
	}
}

func TestCheckPlan_MultipleConfigurations(t *testing.T) {
	eng := newTestEngine(t)

	good := cleanConfiguration("debug")
	bad := cleanConfiguration("release")
	bad.Profiles = []string{"release"}
	bad.SourceFolders = nil

	result, err := eng.CheckPlan(context.Background(), testPlan(good, bad))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	if result.Allowed {
		t.Error("expected plan to be rejected")
	}
	if len(result.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", result.Violations)
	}
	if result.Violations[0].Configuration != "release" {
		t.Errorf("expected violation on release, got %s", result.Violations[0].Configuration)
	}
	if len(result.EvaluatedPolicies) != 4 {
		t.Errorf("expected 4 evaluated policies, got %v", result.EvaluatedPolicies)
	}
	if result.EvaluatedAt.IsZero() {
		t.Error("expected evaluation time to be set")
	}
}

func TestCheckPlan_NilPlan(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.CheckPlan(context.Background(), nil); err == nil {
		t.Error("expected an error for a nil plan")
	}
}

type countingObserver struct {
	counts map[string]int
}

func (o *countingObserver) RecordPolicyViolation(policy, severity string) {
	o.counts[policy+"/"+severity]++
}

func TestCheckPlan_Observer(t *testing.T) {
	eng := newTestEngine(t)
	obs := &countingObserver{counts: map[string]int{}}
	eng.SetObserver(obs)

	first := cleanConfiguration("a")
	first.Artefact.FullName = ""
	second := cleanConfiguration("b")
	second.Artefact.FullName = ""

	if _, err := eng.CheckPlan(context.Background(), testPlan(first, second)); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	if got := obs.counts["artefact-naming/error"]; got != 2 {
		t.Errorf("expected 2 recorded violations, got %d (%v)", got, obs.counts)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)

	cfg := cleanConfiguration("debug")
	cfg.Artefact.FullName = ""
	plan := testPlan(cfg)

	if err := eng.DisablePolicy("artefact-naming"); err != nil {
		t.Fatalf("failed to disable policy: %v", err)
	}

	result, err := eng.CheckPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("expected plan to pass with the policy disabled: %+v", result.Violations)
	}
	for _, name := range result.EvaluatedPolicies {
		if name == "artefact-naming" {
			t.Error("disabled policy should not be evaluated")
		}
	}

	if err := eng.EnablePolicy("artefact-naming"); err != nil {
		t.Fatalf("failed to enable policy: %v", err)
	}

	result, err = eng.CheckPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if result.Allowed {
		t.Error("expected plan to fail with the policy enabled")
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("expected an error enabling an unknown policy")
	}
	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("expected an error disabling an unknown policy")
	}
}

const clangPolicy = `package custom.toolchain

import rego.v1

deny contains msg if {
	input.configuration.toolchain == "clang"
	msg := sprintf("Project %s must not build with clang", [input.plan.project])
}
`

func TestAddPolicy(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.AddPolicy(context.Background(), Policy{
		Name:     "no-clang",
		Rego:     clangPolicy,
		Severity: SeverityError,
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("failed to add policy: %v", err)
	}

	cfg := cleanConfiguration("host")
	cfg.Toolchain = "clang"

	result, err := eng.CheckPlan(context.Background(), testPlan(cfg))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if result.Allowed {
		t.Error("expected clang configuration to be rejected")
	}
	if len(result.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", result.Violations)
	}
	v := result.Violations[0]
	if v.Policy != "no-clang" || v.Severity != "error" || v.Configuration != "host" {
		t.Errorf("unexpected violation: %+v", v)
	}
	if v.Message != "Project blinky must not build with clang" {
		t.Errorf("unexpected message: %s", v.Message)
	}
}

func TestAddPolicy_Invalid(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name   string
		policy Policy
	}{
		{name: "no name", policy: Policy{Rego: clangPolicy}},
		{name: "syntax error", policy: Policy{Name: "broken", Rego: "package broken\n\ndeny contains"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := eng.AddPolicy(context.Background(), tt.policy); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if len(eng.ListPolicies()) != 4 {
		t.Errorf("expected only built-in policies, got %d", len(eng.ListPolicies()))
	}
}

func TestLoadAndReloadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	dir := t.TempDir()
	file := filepath.Join(dir, "no-clang.rego")
	if err := os.WriteFile(file, []byte(clangPolicy), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	if err := eng.LoadPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("failed to load policies: %v", err)
	}

	p, err := eng.GetPolicy("no-clang")
	if err != nil {
		t.Fatalf("expected loaded policy: %v", err)
	}
	if p.Source != file {
		t.Errorf("expected source %s, got %s", file, p.Source)
	}

	cfg := cleanConfiguration("host")
	cfg.Toolchain = "clang"
	result, err := eng.CheckPlan(ctx, testPlan(cfg))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(result.Violations) != 1 {
		t.Fatalf("expected the loaded policy to fire, got %+v", result.Violations)
	}

	if err := os.Remove(file); err != nil {
		t.Fatalf("failed to remove policy: %v", err)
	}
	if err := eng.ReloadPolicies(ctx); err != nil {
		t.Fatalf("failed to reload policies: %v", err)
	}

	if _, err := eng.GetPolicy("no-clang"); err == nil {
		t.Error("expected removed policy to be gone after reload")
	}
	if _, err := eng.GetPolicy("artefact-naming"); err != nil {
		t.Errorf("expected built-in policies after reload: %v", err)
	}
}

func TestLoadPolicies_CompileError(t *testing.T) {
	eng := newTestEngine(t)

	file := filepath.Join(t.TempDir(), "broken.rego")
	if err := os.WriteFile(file, []byte("package broken\n\ndeny contains"), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{file}); err == nil {
		t.Error("expected a compile error")
	}
}

func TestWatch(t *testing.T) {
	eng := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Watch(ctx); err == nil {
		t.Error("expected an error watching without policy paths")
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "no-clang.rego")
	if err := os.WriteFile(file, []byte("# First\n"+clangPolicy), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}
	if err := eng.LoadPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("failed to load policies: %v", err)
	}
	if err := eng.Watch(ctx); err != nil {
		t.Fatalf("failed to watch: %v", err)
	}

	if err := os.WriteFile(file, []byte("# Second\n"+clangPolicy), 0644); err != nil {
		t.Fatalf("failed to rewrite policy: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p, err := eng.GetPolicy("no-clang"); err == nil && p.Description == "Second" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("expected the policy to be reloaded after the file changed")
}
