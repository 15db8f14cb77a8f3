package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"bpm/prefs"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	PageConfig struct {
		ContentClass          string `yaml:"content_class" validate:"required"`
		SidebarClass          string `yaml:"sidebar_class" validate:"required"`
		Origin                string `yaml:"origin"`
		OutputNameTemplate    string `yaml:"output_name_template"`
		FileNameTransliterate bool   `yaml:"file_name_transliterate"`
	}

	ExpansionConfig struct {
		CachePath      string            `yaml:"cache_path" sanitize:"path_clean" validate:"required"`
		LookupTimeout  time.Duration     `yaml:"lookup_timeout" validate:"gte=0"`
		RegionsPerPass int               `yaml:"regions_per_pass" validate:"gte=0"`
		Preferences    prefs.Preferences `yaml:"preferences"`
	}

	StylesConfig struct {
		Inject     bool   `yaml:"inject"`
		Directory  string `yaml:"directory" sanitize:"path_clean" validate:"required_if=Inject true"`
		CustomPath string `yaml:"custom_path" sanitize:"assure_file_access"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Page      PageConfig      `yaml:"page"`
		Expansion ExpansionConfig `yaml:"expansion"`
		Styles    StylesConfig    `yaml:"styles"`
		Logging   LoggingConfig   `yaml:"logging"`
		Reporting ReporterConfig  `yaml:"reporting"`
	}
)

// NOTE: must match yaml field name above.
const OutputNameTemplateFieldName TemplateFieldName = "output_name_template"

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
