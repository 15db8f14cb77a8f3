package compile

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
)

// Props are emote properties as written in source file.
type Props struct {
	Positioning []int             `yaml:"Positioning"`
	Ignore      bool              `yaml:"Ignore"`
	NSFW        bool              `yaml:"NSFW"`
	NoCSS       bool              `yaml:"NoCSS"`
	NoMap       bool              `yaml:"NoMap"`
	Selector    string            `yaml:"Selector"`
	CSS         map[string]string `yaml:"CSS"`
	Unknown     map[string]any    `yaml:",inline"`
}

// Source is a single emote source file.
type Source struct {
	// image url -> emote name -> properties
	Spritesheets map[string]map[string]Props `yaml:"Spritesheets"`
	Custom       map[string]Props            `yaml:"Custom"`
	Unknown      map[string]any              `yaml:",inline"`
}

// Emote is emote definition ready for output.
type Emote struct {
	File     string
	Name     string
	Selector string
	CSS      map[string]string
	Ignore   bool
	NSFW     bool
	NoCSS    bool
	NoMap    bool
}

// Selector returns default CSS selector for emote name. Case is normalized
// since CSS class names are matched case insensitively by us.
func Selector(name string) string {
	name = strings.ReplaceAll(strings.ToLower(name), "!", "_excl_")
	return ".bpmotes-" + strings.TrimLeft(name, "/")
}

// LoadFile reads and converts emote source file.
func LoadFile(path string, log *zap.Logger) ([]Emote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read emote source: %w", err)
	}
	return Load(data, path, log)
}

// Load converts emote source data. file identifies source in emitted records
// and warnings.
func Load(data []byte, file string, log *zap.Logger) ([]Emote, error) {
	var src Source
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&src); err != nil {
		return nil, fmt.Errorf("unable to decode emote source %s: %w", file, err)
	}
	for _, section := range sortedKeys(src.Unknown) {
		log.Warn("Unknown section", zap.String("section", section), zap.String("file", file))
	}

	var all []Emote
	for _, image := range sortedKeys(src.Spritesheets) {
		sheet := src.Spritesheets[image]
		for _, name := range sortedKeys(sheet) {
			props := sheet[name]
			if len(props.Positioning) != 4 {
				return nil, fmt.Errorf("emote %s in %s: positioning must have 4 values, got %d", name, file, len(props.Positioning))
			}
			w, h, x, y := props.Positioning[0], props.Positioning[1], props.Positioning[2], props.Positioning[3]
			css := map[string]string{
				"display":             "block",
				"clear":               "none",
				"float":               "left",
				"background-image":    "url(" + image + ")",
				"width":               px(w),
				"height":              px(h),
				"background-position": px(x) + " " + px(y),
			}
			e, err := newEmote(file, name, props, css, log)
			if err != nil {
				return nil, err
			}
			all = append(all, e)
		}
	}
	for _, name := range sortedKeys(src.Custom) {
		e, err := newEmote(file, name, src.Custom[name], map[string]string{}, log)
		if err != nil {
			return nil, err
		}
		all = append(all, e)
	}
	return all, nil
}

func newEmote(file, name string, props Props, css map[string]string, log *zap.Logger) (Emote, error) {
	if !strings.HasPrefix(name, "/") {
		return Emote{}, fmt.Errorf("emote name %q in %s must start with '/'", name, file)
	}
	for _, key := range sortedKeys(props.Unknown) {
		log.Warn("Unknown key", zap.String("key", key), zap.String("emote", name), zap.String("file", file), zap.Any("value", props.Unknown[key]))
	}
	if len(props.Positioning) > 0 && len(css) == 0 {
		log.Warn("Positioning ignored for custom emote", zap.String("emote", name), zap.String("file", file))
	}
	for k, v := range props.CSS {
		css[k] = v
	}
	sel := props.Selector
	if len(sel) == 0 {
		sel = Selector(name)
	}
	return Emote{
		File:     file,
		Name:     name,
		Selector: sel,
		CSS:      css,
		Ignore:   props.Ignore,
		NSFW:     props.NSFW,
		NoCSS:    props.NoCSS,
		NoMap:    props.NoMap,
	}, nil
}

func px(v int) string {
	return strconv.Itoa(v) + "px"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Sort(natural.StringSlice(keys))
	return keys
}
