package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#Generator: {
	name:    string
	version: int
}
`

	err := sr.RegisterSchema("generator", "#Generator", customSchema)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("generator")
	if !ok {
		t.Fatal("expected to find generator schema")
	}

	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}

	if err := sr.RegisterSchema("broken", "#Missing", customSchema); err == nil {
		t.Error("expected error for missing definition")
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	builtins := []string{
		SchemaPackage,
		SchemaProject,
		SchemaToolchains,
	}

	for _, name := range builtins {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}

			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}

	if got := sr.ListSchemas(); len(got) != 3 || got[0] != SchemaPackage {
		t.Errorf("unexpected schema list %v", got)
	}
}

func TestSchemaRegistry_ValidateProject(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		data    map[string]any
		wantErr bool
	}{
		{
			name: "valid project",
			data: map[string]any{
				"schemaVersion": "0.2.0",
				"name":          "blinky",
				"targets": map[string]any{
					"native": map[string]any{"addSourceFolders": []any{"src"}},
				},
				"configurations": map[string]any{
					"native-debug": map[string]any{
						"target":    "native",
						"toolchain": "gcc",
						"profiles":  []any{"debug"},
						"artefact":  map[string]any{"type": "staticLib"},
					},
				},
			},
			wantErr: false,
		},
		{
			name:    "unsupported schema version",
			data:    map[string]any{"schemaVersion": "0.3.0"},
			wantErr: true,
		},
		{
			name:    "missing schema version",
			data:    map[string]any{"name": "blinky"},
			wantErr: true,
		},
		{
			name: "configuration without target",
			data: map[string]any{
				"schemaVersion": "0.2.1",
				"configurations": map[string]any{
					"debug": map[string]any{"toolchain": "gcc", "profiles": []any{"debug"}},
				},
			},
			wantErr: true,
		},
		{
			name: "configuration with empty profiles",
			data: map[string]any{
				"schemaVersion": "0.2.1",
				"configurations": map[string]any{
					"debug": map[string]any{"target": "t", "toolchain": "gcc", "profiles": []any{}},
				},
			},
			wantErr: true,
		},
		{
			name: "unsupported artefact type",
			data: map[string]any{
				"schemaVersion": "0.2",
				"artefact":      map[string]any{"type": "firmware"},
			},
			wantErr: true,
		},
		{
			name: "source folders must be strings",
			data: map[string]any{
				"schemaVersion":    "0.2.0",
				"addSourceFolders": []any{"src", 3},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd := &ProjectDescriptor{Path: "xmake.json", Raw: tt.data}
			errs, err := sr.ValidateProject(ctx, pd)
			if err != nil {
				t.Fatalf("failed to validate: %v", err)
			}
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("ValidateProject() errors = %v, wantErr %v", errs, tt.wantErr)
			}
			for _, e := range errs {
				if e.File == "" {
					t.Errorf("expected the descriptor path on %v", e)
				}
			}
		})
	}
}

func TestSchemaRegistry_ValidateToolchains(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	valid := map[string]any{
		"gcc": map[string]any{
			"tools": map[string]any{
				"cc": map[string]any{"type": "compiler", "commandName": "gcc", "description": "C"},
			},
		},
	}
	if errs, err := sr.Validate(ctx, SchemaToolchains, valid); err != nil || len(errs) > 0 {
		t.Errorf("expected valid toolchains, got %v %v", errs, err)
	}

	invalid := map[string]any{
		"gcc": map[string]any{"commandPrefix": 1},
	}
	if errs, err := sr.Validate(ctx, SchemaToolchains, invalid); err != nil || len(errs) == 0 {
		t.Errorf("expected violations, got %v %v", errs, err)
	}

	if _, err := sr.Validate(ctx, "unknown", valid); err == nil {
		t.Error("expected error for unknown schema")
	}
}
