package process

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"bpm/config"
	"bpm/state"
)

const outputExt = ".html"

// Values is a struct that holds variables we make available for output name
// template expansion.
type Values struct {
	Context    string
	Origin     string
	Title      string
	SourceFile string
}

// buildOutputPath returns output file path for expanded page. It uses either
// source file name or user-defined template and takes into account whether
// to preserve source directory structure on the output.
func buildOutputPath(values Values, src, dst string, env *state.LocalEnv) string {
	outDir := dst
	if !env.NoDirs {
		outDir = filepath.Join(dst, filepath.Dir(src))
	}
	defaultFile := cleanPathSegment(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)), env) + outputExt

	if env.Cfg.Page.OutputNameTemplate == "" {
		return filepath.Join(outDir, defaultFile)
	}

	expanded, err := expandTemplate(config.OutputNameTemplateFieldName, env.Cfg.Page.OutputNameTemplate, values)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return filepath.Join(outDir, defaultFile)
	}
	segments := splitAndCleanPath(filepath.FromSlash(expanded))
	if len(segments) == 0 {
		return filepath.Join(outDir, defaultFile)
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, outDir)
	for i, s := range segments {
		s = cleanPathSegment(s, env)
		if i == len(segments)-1 {
			s += outputExt
		}
		parts = append(parts, s)
	}
	return filepath.Join(parts...)
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}
	values.Context = string(name)

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func splitAndCleanPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); tail != ""; head, tail = filepath.Split(head) {
		segments = slices.Insert(segments, 0, tail)
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
	}
	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Page.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return cleanFileName(segment)
}

// cleanFileName removes characters not allowed in file names on any of the
// supported platforms.
func cleanFileName(in string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		if sym < 0x20 || strings.ContainsRune(`<>":/\|?*`+string(os.PathSeparator)+string(os.PathListSeparator), sym) {
			return -1
		}
		return sym
	}, in), ".")
	if len(out) == 0 {
		out = "_bad_file_name_"
	}
	return out
}
