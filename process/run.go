// Package process implements expand command: it finds pages in files,
// directories and archives, expands emote references in them and writes
// results.
package process

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"bpm/archive"
	"bpm/cache"
	"bpm/expand"
	"bpm/page"
	"bpm/prefs"
	"bpm/resolve"
	"bpm/state"
	"bpm/styles"
)

var pageExts = archive.HasExt(".html", ".htm", ".xhtml")

// engine is what every page of a single run shares.
type engine struct {
	resolver *resolve.Resolver
	prefs    prefs.Provider
	styles   *styles.Loader
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("process")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	env.Origin = strings.ToLower(strings.TrimSpace(cmd.String("origin")))
	env.PrefsPath = cmd.String("prefs")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	if cp := cmd.String("force-zip-cp"); len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	eng, closer := newEngine(env, log)
	defer closer()

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, eng, src, dst, log)
}

// newEngine opens emote cache and prepares preferences source. Cache which
// cannot be opened does not stop processing: every reference is unresolved
// then.
func newEngine(env *state.LocalEnv, log *zap.Logger) (*engine, func()) {
	cfg := env.Cfg.Expansion

	var (
		lookup resolve.Lookup
		closer = func() {}
	)
	if db, err := cache.Open(cfg.CachePath, runtime.NumCPU(), log); err != nil {
		log.Error("Emote cache is unavailable, all references will be unresolved", zap.Error(err))
		lookup = resolve.Unavailable{Err: err}
	} else {
		lookup = db
		closer = func() {
			if err := db.Close(); err != nil {
				log.Warn("Unable to close emote cache", zap.Error(err))
			}
		}
	}

	var provider prefs.Provider = prefs.Static(cfg.Preferences)
	if len(env.PrefsPath) > 0 {
		provider = prefs.File{Path: env.PrefsPath}
	}

	eng := &engine{
		resolver: resolve.New(lookup, cfg.LookupTimeout, log),
		prefs:    provider,
	}
	if env.Cfg.Styles.Inject {
		eng.styles = styles.NewLoader(env.Cfg.Styles.Directory, env.Cfg.Styles.CustomPath, log)
	}
	return eng, closer
}

// process determines the input type (directory, archive, path in archive or
// single file) and processes accordingly.
func process(ctx context.Context, eng *engine, src, dst string, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, eng, head, dst, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			tail = filepath.ToSlash(strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator)))
			if err := processArchive(ctx, eng, head, tail, "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		isPage, err := isPageFile(head)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if isPage && len(tail) == 0 {
			file, err := os.Open(head)
			if err != nil {
				return fmt.Errorf("unable to open page: %w", err)
			}
			defer file.Close()
			return processPage(ctx, eng, file, filepath.Base(head), dst, log)
		}
		return fmt.Errorf("input was not recognized as HTML page (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding pages and archives and processes
// them. Failures of individual pages are logged and do not stop the walk.
func processDir(ctx context.Context, eng *engine, dir, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		isArchive, err := isArchiveFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := processArchive(ctx, eng, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		isPage, err := isPageFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !isPage {
			log.Debug("Skipping file, not recognized as page or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processPage(ctx, eng, file, src, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
}

// processArchive walks pages inside archive located under "pathIn" and
// processes them.
func processArchive(ctx context.Context, eng *engine, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	cp := state.EnvFromContext(ctx).CodePage

	return archive.Walk(path, pathIn, pageExts, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive", zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		isPage, pr, err := isPageReader(r)
		if err != nil {
			log.Warn("Skipping file in archive", zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
			return nil
		}
		if !isPage {
			log.Debug("Skipping file, not recognized as page", zap.String("archive", arc), zap.String("file", f.Name))
			return nil
		}

		count++

		name := f.Name
		if cp != nil && f.NonUTF8 {
			if n, err := cp.NewDecoder().String(name); err == nil {
				name = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", name), zap.Error(err))
			}
		}
		if err := processPage(ctx, eng, pr, filepath.Join(pathOut, filepath.FromSlash(name)), dst, log); err != nil {
			log.Error("Unable to process file in archive", zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
		}
		return nil
	})
}

// processPage expands single page. "src" is source path relative to the
// original input (base name for single file), "dst" is destination
// directory. Failed passes leave their regions untouched and do not prevent
// the page from being written.
func processPage(ctx context.Context, eng *engine, r io.Reader, src, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName string

	log.Info("Expansion starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Expansion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("expansion panic: %v", r)
		} else if rerr == nil {
			log.Info("Expansion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	doc, err := page.Load(r, "")
	if err != nil {
		return fmt.Errorf("unable to read page (%s): %w", src, err)
	}

	origin := env.Origin
	if len(origin) == 0 {
		origin = strings.ToLower(env.Cfg.Page.Origin)
	}
	if len(origin) == 0 {
		origin = doc.Origin()
	}

	identity := expand.Identify(doc, env.Cfg.Page.SidebarClass, env.Cfg.Page.ContentClass, log)
	exp := expand.New(identity, expand.Options{
		Origin:      origin,
		Resolver:    eng.resolver,
		Preferences: eng.prefs,
	}, log)

	outcomes, err := exp.Run(ctx, doc, env.Cfg.Page.ContentClass, env.Cfg.Expansion.RegionsPerPass)
	if err != nil {
		log.Warn("Some passes were abandoned", zap.String("page", src), zap.Error(err))
	}
	for _, o := range outcomes {
		if o.ResolveErr != nil {
			log.Warn("Emote references were not resolved", zap.String("page", src), zap.String("pass", o.ID), zap.Error(o.ResolveErr))
		}
	}

	if eng.styles != nil {
		if err := injectStyles(ctx, eng, doc); err != nil {
			log.Warn("Stylesheets were not injected", zap.String("page", src), zap.Error(err))
		}
	}

	outputName = buildOutputPath(Values{Origin: origin, Title: doc.Title(), SourceFile: strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))}, src, dst, env)
	if err := writePage(doc, outputName, env.Overwrite, log); err != nil {
		return err
	}

	if env.Rpt != nil {
		name := filepath.Base(outputName)
		if rel, err := filepath.Rel(dst, outputName); err == nil {
			name = filepath.ToSlash(rel)
		}
		env.Rpt.Store("result/"+name, outputName)
		env.Rpt.StoreData("expand/"+name+".txt", []byte(expand.Report(doc, env.Cfg.Page.ContentClass, identity, outcomes)))
	}
	return nil
}

func injectStyles(ctx context.Context, eng *engine, doc *page.Document) error {
	p, err := prefs.NewGate(ctx, eng.prefs).Current()
	if err != nil {
		return err
	}
	data, err := eng.styles.Load(ctx, p)
	if err != nil {
		return err
	}
	if !styles.Inject(doc, data) {
		return errors.New("page has no head")
	}
	return nil
}

func writePage(doc *page.Document, outputName string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	out, err := os.Create(outputName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	if err := doc.Render(out); err != nil {
		out.Close()
		return fmt.Errorf("unable to write page: %w", err)
	}
	return out.Close()
}
