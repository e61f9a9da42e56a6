package assets

import (
	"io/fs"
	"strings"
	"testing"
)

func TestGetClientJS(t *testing.T) {
	data, err := GetClientJS()
	if err != nil {
		t.Fatalf("GetClientJS failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("GetClientJS returned empty data")
	}
	if !strings.Contains(string(data), "ssr-state") {
		t.Error("client script should read the embedded state element")
	}
}

func TestGetClientCSS(t *testing.T) {
	data, err := GetClientCSS()
	if err != nil {
		t.Fatalf("GetClientCSS failed: %v", err)
	}
	if !strings.Contains(string(data), `[data-theme="dark"]`) {
		t.Error("stylesheet should style the dark theme")
	}
}

func TestClientFS(t *testing.T) {
	entries, err := fs.ReadDir(ClientFS(), ".")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 client files, got %d", len(entries))
	}
}

func TestTemplates(t *testing.T) {
	tmpl, err := Templates(nil)
	if err != nil {
		t.Fatalf("Templates failed: %v", err)
	}
	for _, name := range []string{"layout", "menu", "main"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %q is not defined", name)
		}
	}
}
