package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReport_Nil(t *testing.T) {
	var r *Report
	r.Store("x", "y")
	r.StoreData("x", []byte("y"))
	if r.Name() != "" {
		t.Error("Name() of nil report is not empty")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestReport_Archive(t *testing.T) {
	dir := t.TempDir()
	conf := &ReporterConfig{Destination: filepath.Join(dir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if r.Name() != conf.Destination {
		t.Errorf("Name() = %q, want %q", r.Name(), conf.Destination)
	}

	page := filepath.Join(dir, "page.html")
	if err := os.WriteFile(page, []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}
	data := []byte("version: 1\n")
	r.Store("result-page.html", page)
	r.Store("absent", filepath.Join(dir, "absent.log"))
	r.StoreData("config/bpm.yaml", data)
	// data is copied
	data[0] = 'X'

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	zr, err := zip.OpenReader(conf.Destination)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer zr.Close()

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		files[f.Name] = string(b)
	}

	if files["result-page.html"] != "<html></html>" {
		t.Errorf("stored page = %q", files["result-page.html"])
	}
	if files["config/bpm.yaml"] != "version: 1\n" {
		t.Errorf("stored data = %q", files["config/bpm.yaml"])
	}
	if _, ok := files["absent"]; ok {
		t.Error("absent file was stored")
	}
	manifest := files["MANIFEST"]
	for _, name := range []string{"absent", "config/bpm.yaml", "result-page.html"} {
		if !strings.Contains(manifest, "\t"+name+"\t") {
			t.Errorf("MANIFEST misses %s:\n%s", name, manifest)
		}
	}
}

func TestReport_Overwrite(t *testing.T) {
	r, err := (&ReporterConfig{Destination: filepath.Join(t.TempDir(), "r.zip")}).Prepare()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.Store("a", "one")
	// same path again is fine
	r.Store("a", "one")

	defer func() {
		if recover() == nil {
			t.Error("Store() did not panic on overwrite")
		}
	}()
	r.Store("a", "two")
}
