package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	// FontsConfig lists replacement font files, empty entries use bundled Go
	// fonts.
	FontsConfig struct {
		Regular    string `yaml:"regular" sanitize:"assure_file_access"`
		Bold       string `yaml:"bold" sanitize:"assure_file_access"`
		Italic     string `yaml:"italic" sanitize:"assure_file_access"`
		BoldItalic string `yaml:"bold_italic" sanitize:"assure_file_access"`
		Mono       string `yaml:"mono" sanitize:"assure_file_access"`
	}

	// LayoutConfig describes viewport and typography. Page dimensions are in
	// inches and converted to layout units using DPI.
	LayoutConfig struct {
		Dialect      string      `yaml:"dialect" validate:"omitempty,oneof=auto reflow html xhtml epub markdown mobi prc azw fictionbook fb2"`
		PageWidth    float64     `yaml:"page_width" validate:"gt=0"`
		PageHeight   float64     `yaml:"page_height" validate:"gt=0"`
		DPI          int         `yaml:"dpi" validate:"min=72,max=1200"`
		Border       float64     `yaml:"border" validate:"gte=0"`
		FontFamily   string      `yaml:"font_family" validate:"required"`
		FontSize     float64     `yaml:"font_size" validate:"gt=0"`
		Align        string      `yaml:"align" validate:"oneof=justify left right center"`
		LineGap      float64     `yaml:"line_gap" validate:"gte=0"`
		ParagraphGap float64     `yaml:"paragraph_gap" validate:"gte=0"`
		HeadingGap   float64     `yaml:"heading_gap" validate:"gte=0"`
		Indent       float64     `yaml:"indent" validate:"gte=0"`
		Fonts        FontsConfig `yaml:"fonts"`
	}

	ImagesConfig struct {
		Enable      bool    `yaml:"enable"`
		UseBroken   bool    `yaml:"use_broken"`
		ScaleFactor float64 `yaml:"scale_factor" validate:"gte=0.0"`
	}

	PreviewConfig struct {
		OutputNameTemplate string        `yaml:"output_name_template"`
		Format             PreviewFormat `yaml:"format"`
		Scale              float64       `yaml:"scale" validate:"gt=0,lte=8"`
		JPEGQuality        int           `yaml:"jpeg_quality_level" validate:"min=40,max=100"`
		Background         string        `yaml:"background" validate:"hexcolor"`
		ShowLinks          bool          `yaml:"show_links"`
	}

	ExportConfig struct {
		Format ExportFormat `yaml:"format"`
	}

	ServerConfig struct {
		Listen       string        `yaml:"listen" validate:"required,hostname_port"`
		ReadTimeout  time.Duration `yaml:"read_timeout" validate:"min=1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=1s"`
		CacheSize    int           `yaml:"cache_size" validate:"min=1"`
		Token        SecretString  `yaml:"token,omitempty"`
	}

	BookmarksConfig struct {
		Database string `yaml:"database" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Layout    LayoutConfig    `yaml:"layout"`
		Images    ImagesConfig    `yaml:"images"`
		Preview   PreviewConfig   `yaml:"preview"`
		Export    ExportConfig    `yaml:"export"`
		Server    ServerConfig    `yaml:"server"`
		Bookmarks BookmarksConfig `yaml:"bookmarks"`
		Logging   LoggingConfig   `yaml:"logging"`
		Reporting ReporterConfig  `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

// PageSize returns viewport size in layout units (pixels at configured DPI)
// with border removed from every side.
func (conf *LayoutConfig) PageSize() (width, height float64) {
	dpi := float64(conf.DPI)
	width = (conf.PageWidth - 2*conf.Border) * dpi
	height = (conf.PageHeight - 2*conf.Border) * dpi
	return max(width, 0), max(height, 0)
}

// Margin returns border width in layout units.
func (conf *LayoutConfig) Margin() float64 {
	return conf.Border * float64(conf.DPI)
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// Only fields we defined are accepted, so no plain yaml.Unmarshal here
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

// LoadConfiguration expands embedded configuration template, overlays values
// from the file at path (when given) and validates the result.
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

// Prepare expands configuration template and returns it.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
