package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/internal/embedding"
	"github.com/flemzord/recall/modules/storage/sqlite"
)

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "recall")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "recall.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")

	origDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	_, err := ResolveConfigPath()
	if err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	got := DefaultDataDir()
	want := "/custom/data/recall"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	err := Run(RunParams{ConfigPath: "/nonexistent/config.yaml"})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestRun_InvalidConfigContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := Run(RunParams{ConfigPath: path})
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noversion.yaml")
	if err := os.WriteFile(path, []byte("modules:\n  foo: {}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := Run(RunParams{ConfigPath: path})
	if err == nil {
		t.Error("expected validation error")
	}
}

// registerStores opens a real store and registers the storage services
// the way the sqlite module does.
func registerStores(t *testing.T, appCtx *core.AppContext) {
	t.Helper()

	stores, err := sqlite.Open(filepath.Join(t.TempDir(), "recall.db"), slog.Default())
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = stores.DB.Close() })

	appCtx.RegisterService("storage.conversations", stores.Conversations)
	appCtx.RegisterService("storage.facts", stores.Facts)
	appCtx.RegisterService("storage.chunks", stores.Chunks)
	appCtx.RegisterService("storage.summaries", stores.Summaries)
	appCtx.RegisterService("storage.jobs", stores.Jobs)
}

func TestWireEngine_LexicalOnly(t *testing.T) {
	appCtx := core.NewAppContext(slog.Default(), t.TempDir())
	registerStores(t, appCtx)
	application := core.NewApp(appCtx)

	if err := wireEngine(application, appCtx, slog.Default(), nil); err != nil {
		t.Fatalf("wireEngine: %v", err)
	}

	for _, name := range []string{"context.assembler", "memory.service", "search.engine", "graph.builder"} {
		if _, ok := appCtx.Service(name); !ok {
			t.Errorf("service %q not registered", name)
		}
	}
	if _, ok := appCtx.Service("embedding.indexer"); ok {
		t.Error("indexer registered without a provider")
	}
}

func TestWireEngine_WithProvider(t *testing.T) {
	appCtx := core.NewAppContext(slog.Default(), t.TempDir())
	registerStores(t, appCtx)
	appCtx.RegisterService("embedding.provider", embedding.ProviderFunc(
		func(context.Context, string) ([]float32, error) {
			return []float32{1, 0}, nil
		}))
	application := core.NewApp(appCtx)

	if err := wireEngine(application, appCtx, slog.Default(), nil); err != nil {
		t.Fatalf("wireEngine: %v", err)
	}
	if _, ok := appCtx.Service("embedding.indexer"); !ok {
		t.Error("indexer not registered with a provider present")
	}
}

func TestWireEngine_MissingStorage(t *testing.T) {
	appCtx := core.NewAppContext(slog.Default(), t.TempDir())
	application := core.NewApp(appCtx)

	if err := wireEngine(application, appCtx, slog.Default(), nil); err == nil {
		t.Fatal("expected error without storage services")
	}
}
