package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCategoriesDefault(t *testing.T) {
	defs, err := LoadCategories("")
	if err != nil {
		t.Fatalf("LoadCategories: %v", err)
	}
	if len(defs) != 5 || defs[0].Name != "Sites" || defs[4].DefaultTarget != 50 {
		t.Fatalf("unexpected stock table: %+v", defs)
	}
}

func TestLoadCategoriesFormats(t *testing.T) {
	files := map[string]string{
		"categories.toml": `
[[categories]]
name = "Sites"
target = 7

[[categories]]
name = "Consultoria"
target = 0
`,
		"categories.yaml": `
categories:
  - name: Sites
    target: 7
  - name: Consultoria
    target: 0
`,
		"categories.json": `{"categories":[{"name":"Sites","target":7},{"name":"Consultoria","target":0}]}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			defs, err := LoadCategories(writeFile(t, name, content))
			if err != nil {
				t.Fatalf("LoadCategories: %v", err)
			}
			if len(defs) != 2 {
				t.Fatalf("expected 2 categories, got %+v", defs)
			}
			if defs[0].Name != "Sites" || defs[0].DefaultTarget != 7 {
				t.Errorf("first = %+v", defs[0])
			}
			if defs[1].Name != "Consultoria" || defs[1].DefaultTarget != 0 {
				t.Errorf("second = %+v", defs[1])
			}
		})
	}
}

func TestLoadCategoriesErrors(t *testing.T) {
	cases := map[string]string{
		"unsupported extension": writeFile(t, "categories.ini", "x"),
		"malformed json":        writeFile(t, "bad.json", "{"),
		"empty table":           writeFile(t, "empty.json", `{"categories":[]}`),
		"duplicate names":       writeFile(t, "dup.yaml", "categories:\n  - name: A\n    target: 1\n  - name: A\n    target: 2\n"),
		"target too large":      writeFile(t, "huge.toml", "[[categories]]\nname = \"A\"\ntarget = 768614336404564651\n"),
		"missing file":          filepath.Join(t.TempDir(), "missing.toml"),
		"directory":             t.TempDir(),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadCategories(path); err == nil {
				t.Fatalf("expected error for %s", path)
			}
		})
	}
}
