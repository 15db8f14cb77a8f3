package compile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"bpm/cache"
	"bpm/state"
	"bpm/styles"
)

const generatedHeader = "Generated by bpm compile, do not edit"

// Run is compile command action: it reads emote source files and produces
// metadata cache along with SFW and NSFW stylesheets.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("compile")

	files := cmd.Args().Slice()
	if len(files) == 0 {
		return errors.New("no emote source files have been specified")
	}

	cachePath := cmd.String("cache")
	if len(cachePath) == 0 {
		cachePath = env.Cfg.Expansion.CachePath
	}
	cssPath := cmd.String("css")
	if len(cssPath) == 0 {
		cssPath = filepath.Join(env.Cfg.Styles.Directory, styles.SheetEmotes)
	}
	nsfwPath := cmd.String("nsfw-css")
	if len(nsfwPath) == 0 {
		nsfwPath = filepath.Join(env.Cfg.Styles.Directory, styles.SheetNSFW)
	}

	log.Info("Compilation starting", zap.Strings("sources", files))
	defer func(start time.Time) {
		log.Info("Compilation completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	var all []Emote
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		emotes, err := LoadFile(f, log)
		if err != nil {
			return err
		}
		log.Debug("Emote source loaded", zap.String("file", f), zap.Int("emotes", len(emotes)))
		all = append(all, emotes...)
	}

	data, err := Build(all)
	if err != nil {
		return fmt.Errorf("unable to compile emotes: %w", err)
	}
	Simplify(data.Rules)
	Simplify(data.NSFWRules)

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return fmt.Errorf("unable to create cache directory: %w", err)
	}
	if err := cache.Write(cachePath, data.Records); err != nil {
		return fmt.Errorf("unable to write emote cache: %w", err)
	}
	if err := writeStylesheet(cssPath, data.Rules); err != nil {
		return err
	}
	if err := writeStylesheet(nsfwPath, data.NSFWRules); err != nil {
		return err
	}

	log.Info("Compilation results",
		zap.Int("records", len(data.Records)), zap.Int("rules", len(data.Rules)), zap.Int("nsfw rules", len(data.NSFWRules)),
		zap.String("cache", cachePath), zap.String("css", cssPath), zap.String("nsfw css", nsfwPath))
	return nil
}

func writeStylesheet(path string, rules Rules) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create stylesheet directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create stylesheet: %w", err)
	}
	if err := WriteCSS(out, rules, generatedHeader); err != nil {
		out.Close()
		return fmt.Errorf("unable to write stylesheet %s: %w", path, err)
	}
	return out.Close()
}
