package process

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsHTML(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"doctype", "<!DOCTYPE html><html></html>", true},
		{"lower html", "<html><body></body></html>", true},
		{"bom and spaces", "\xef\xbb\xbf \n\t<HTML>", true},
		{"comment first", "<!-- saved page -->\n<html>", true},
		{"unterminated comment", "<!-- never ends <html>", false},
		{"xhtml", `<?xml version="1.0"?><html xmlns="http://www.w3.org/1999/xhtml">`, true},
		{"plain xml", `<?xml version="1.0"?><FictionBook>`, false},
		{"body fragment", "<body><p>x</p></body>", true},
		{"text", "just some text", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHTML([]byte(tt.data)); got != tt.want {
				t.Errorf("isHTML(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestIsArchiveFile(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "test.zip")
	if err := os.WriteFile(notZip, []byte("not a real zip file"), 0644); err != nil {
		t.Fatal(err)
	}
	if got, err := isArchiveFile(notZip); err != nil || got {
		t.Errorf("isArchiveFile(fake) = %v, %v", got, err)
	}

	realZip := filepath.Join(dir, "real.bin")
	makeZip(t, realZip, map[string]string{"a.html": "<html></html>"})
	if got, err := isArchiveFile(realZip); err != nil || !got {
		t.Errorf("isArchiveFile(zip) = %v, %v", got, err)
	}

	if _, err := isArchiveFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("isArchiveFile(missing) error = nil")
	}
}

func TestIsPageFile(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.txt")
	if err := os.WriteFile(page, []byte("<!doctype html><title>x</title>"), 0644); err != nil {
		t.Fatal(err)
	}
	if got, err := isPageFile(page); err != nil || !got {
		t.Errorf("isPageFile(page) = %v, %v", got, err)
	}

	arc := filepath.Join(dir, "a.zip")
	makeZip(t, arc, map[string]string{"a.html": "<html></html>"})
	if got, _ := isPageFile(arc); got {
		t.Error("isPageFile(zip) = true")
	}
}

func TestIsPageReader(t *testing.T) {
	body := "<html><body>" + strings.Repeat("x", 3*sniffLen) + "</body></html>"

	ok, r, err := isPageReader(strings.NewReader(body))
	if err != nil || !ok {
		t.Fatalf("isPageReader() = %v, %v", ok, err)
	}
	// nothing is lost
	data, err := io.ReadAll(r)
	if err != nil || string(data) != body {
		t.Errorf("reader returned %d bytes, want %d", len(data), len(body))
	}

	ok, _, err = isPageReader(bytes.NewReader([]byte("short")))
	if err != nil || ok {
		t.Errorf("isPageReader(short) = %v, %v", ok, err)
	}
}

func TestIsPageReader_ZipEntry(t *testing.T) {
	arc := filepath.Join(t.TempDir(), "a.zip")
	makeZip(t, arc, map[string]string{"p.html": "<!DOCTYPE html><html></html>"})

	zr, err := zip.OpenReader(arc)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	if ok, _, err := isPageReader(rc); err != nil || !ok {
		t.Errorf("isPageReader(zip entry) = %v, %v", ok, err)
	}
}
