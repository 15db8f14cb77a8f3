package process

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"bpm/cache"
	"bpm/config"
	"bpm/emote"
	"bpm/state"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Thread title</title>
<link rel="canonical" href="https://example.com/r/Ponies/comments/1/">
</head><body>
<div class="side"><div class="md"><a href="/missing">s</a></div></div>
<div class="md"><a href="/twilicorn-pleased" title="Pleased">1</a> <a href="/missing">2</a> <a href="/r/ponies">3</a></div>
</body></html>`

// setupTestEnv creates a test environment with proper context and logger,
// emote cache is created in temporary directory.
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Expansion.CachePath = filepath.Join(t.TempDir(), "emotes.db")
	if err := cache.Write(cfg.Expansion.CachePath, []emote.Record{
		{Name: "/twilicorn", Class: "bpmotes-twilicorn", Source: "test.yaml"},
	}); err != nil {
		t.Fatalf("write cache: %v", err)
	}

	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env
}

func runProcess(t *testing.T, ctx context.Context, env *state.LocalEnv, src, dst string) error {
	t.Helper()
	eng, closer := newEngine(env, env.Log)
	defer closer()
	return process(ctx, eng, src, dst, env.Log)
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

func makeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for name, data := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func assertExpanded(t *testing.T, out string) {
	t.Helper()
	if !strings.Contains(out, `class="bpm-emote bpmotes-twilicorn"`) {
		t.Errorf("known emote was not expanded:\n%s", out)
	}
	if !strings.Contains(out, `<a href="/missing" class="bpm-unknown" data-bpm-state="unknown">Unknown emote /missing</a>`) {
		t.Errorf("unknown emote was not marked:\n%s", out)
	}
	// distinguished region keeps unresolved references as is
	if !strings.Contains(out, `<a href="/missing">s</a>`) {
		t.Errorf("distinguished region was modified:\n%s", out)
	}
	if !strings.Contains(out, `<a href="/r/ponies">3</a>`) {
		t.Errorf("community link was modified:\n%s", out)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "thread.html")
	writeFile(t, src, samplePage)

	if err := runProcess(t, ctx, env, src, out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	assertExpanded(t, readOutput(t, filepath.Join(out, "thread.html")))

	// destination exists now
	if err := runProcess(t, ctx, env, src, out); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("process() error = %v, want already exists", err)
	}
	env.Overwrite = true
	if err := runProcess(t, ctx, env, src, out); err != nil {
		t.Errorf("process() with overwrite error = %v", err)
	}
}

func TestProcess_Directory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(in, "sub", "a.html"), samplePage)
	writeFile(t, filepath.Join(in, "sub", "notes.txt"), "just text")
	writeFile(t, filepath.Join(in, "b.htm"), samplePage)

	if err := runProcess(t, ctx, env, in, out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	assertExpanded(t, readOutput(t, filepath.Join(out, "sub", "a.html")))
	assertExpanded(t, readOutput(t, filepath.Join(out, "b.html")))
	if _, err := os.Stat(filepath.Join(out, "sub", "notes.html")); err == nil {
		t.Error("text file was processed")
	}
}

func TestProcess_Archive(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in, out := t.TempDir(), t.TempDir()
	arc := filepath.Join(in, "pages.zip")
	makeZip(t, arc, map[string]string{
		"pages/a.html":   samplePage,
		"pages/b.html":   samplePage,
		"pages/c.txt":    "text",
		"other/d.html":   samplePage,
		"pages/bad.html": "not a page",
	})

	if err := runProcess(t, ctx, env, filepath.Join(arc, "pages"), out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	assertExpanded(t, readOutput(t, filepath.Join(out, "pages", "a.html")))
	assertExpanded(t, readOutput(t, filepath.Join(out, "pages", "b.html")))
	for _, name := range []string{"other/d.html", "pages/bad.html", "pages/c.html"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(name))); err == nil {
			t.Errorf("%s should not be produced", name)
		}
	}
}

func TestProcess_NotFound(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "notes.txt"), "just text")

	if err := runProcess(t, ctx, env, filepath.Join(in, "missing.html"), t.TempDir()); err == nil {
		t.Error("process() error = nil for missing source")
	}
	if err := runProcess(t, ctx, env, filepath.Join(in, "notes.txt"), t.TempDir()); err == nil {
		t.Error("process() error = nil for non page")
	}
}

func TestProcess_CacheUnavailable(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Expansion.CachePath = filepath.Join(t.TempDir(), "none.db")
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "thread.html")
	writeFile(t, src, samplePage)

	if err := runProcess(t, ctx, env, src, out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(out, "thread.html"))
	if !strings.Contains(got, "Unknown emote /twilicorn") {
		t.Errorf("unresolved emote was not marked:\n%s", got)
	}
}

func TestProcess_PreferencesFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "thread.html")
	writeFile(t, src, samplePage)
	env.PrefsPath = filepath.Join(in, "prefs.yaml")
	writeFile(t, env.PrefsPath, "blacklisted_origins: [ponies]\nshow_alt_text: true\n")

	if err := runProcess(t, ctx, env, src, out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(out, "thread.html"))
	if strings.Contains(got, "bpm-emote") || strings.Contains(got, "bpm-unknown") {
		t.Errorf("page of blacklisted origin was expanded:\n%s", got)
	}
	if !strings.Contains(got, `<span class="bpm-alttext">Pleased</span>`) {
		t.Errorf("alt text missing:\n%s", got)
	}
}

func TestProcess_PreferencesUnavailable(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "thread.html")
	writeFile(t, src, samplePage)
	env.PrefsPath = filepath.Join(in, "missing.yaml")

	if err := runProcess(t, ctx, env, src, out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(out, "thread.html"))
	if strings.Contains(got, "data-bpm-state") {
		t.Errorf("page was expanded without preferences:\n%s", got)
	}
}

func TestProcess_InjectStyles(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "thread.html")
	writeFile(t, src, samplePage)
	styles := filepath.Join(in, "styles")
	writeFile(t, filepath.Join(styles, "bpmotes.css"), ".bpm-emote{display:block}")
	env.Cfg.Styles.Inject = true
	env.Cfg.Styles.Directory = styles

	if err := runProcess(t, ctx, env, src, out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readOutput(t, filepath.Join(out, "thread.html"))
	if !strings.Contains(got, `<style id="bpm-styles">`) || !strings.Contains(got, "display:block") {
		t.Errorf("styles were not injected:\n%s", got)
	}
}

func TestProcess_OriginOverride(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "thread.html")
	writeFile(t, src, samplePage)
	env.Cfg.Expansion.Preferences.BlacklistedOrigins = []string{"ponies"}
	env.Origin = "other"

	if err := runProcess(t, ctx, env, src, out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	assertExpanded(t, readOutput(t, filepath.Join(out, "thread.html")))
}

func TestProcess_DebugReport(t *testing.T) {
	ctx, env := setupTestEnv(t)
	in, out := t.TempDir(), t.TempDir()
	src := filepath.Join(in, "thread.html")
	writeFile(t, src, samplePage)

	rpt, err := (&config.ReporterConfig{Destination: filepath.Join(in, "report.zip")}).Prepare()
	if err != nil {
		t.Fatal(err)
	}
	env.Rpt = rpt

	if err := runProcess(t, ctx, env, src, out); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if err := rpt.Close(); err != nil {
		t.Fatalf("close report: %v", err)
	}

	zr, err := zip.OpenReader(rpt.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"MANIFEST", "result/thread.html", "expand/thread.html.txt"} {
		if !names[want] {
			t.Errorf("report misses %s: %v", want, names)
		}
	}
}
