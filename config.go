package rushtpl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds engine settings. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	TemplatesDir  string `yaml:"templates_dir"`
	PartialsDir   string `yaml:"partials_dir"`
	ComponentsDir string `yaml:"components_dir"`
	LayoutsDir    string `yaml:"layouts_dir"`
	// Extension is appended to names that have none.
	Extension string `yaml:"extension"`
	// Encoding of template files, as a WHATWG label such as "utf-8" or "windows-1252".
	Encoding string `yaml:"encoding"`
	Cache    bool   `yaml:"cache"`
	Debug    bool   `yaml:"debug"`
	// MaxDepth bounds nesting of partials, components and layouts.
	MaxDepth int `yaml:"max_depth"`

	DefaultLocale  string       `yaml:"default_locale"`
	FallbackLocale string       `yaml:"fallback_locale"`
	LocalesDir     string       `yaml:"locales_dir"`
	Translations   Translations `yaml:"translations"`

	Globals map[string]any `yaml:"globals"`

	WatchInterval time.Duration `yaml:"watch_interval"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TemplatesDir:   "templates",
		PartialsDir:    "templates/partials",
		ComponentsDir:  "templates/components",
		LayoutsDir:     "templates/layouts",
		Extension:      ".html",
		Encoding:       "utf-8",
		Cache:          true,
		MaxDepth:       32,
		DefaultLocale:  "en",
		FallbackLocale: "en",
		WatchInterval:  time.Second,
		WatchDebounce:  250 * time.Millisecond,
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	const errCtx = "loading config"
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", errCtx, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: parsing %s: %w", errCtx, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", errCtx, err)
	}
	return cfg, nil
}

// ConfigFromEnv overlays RUSHTPL_* environment variables on DefaultConfig.
// Variables are first loaded from the given .env files (default ".env");
// missing files are ignored.
//
//	RUSHTPL_TEMPLATES_DIR, RUSHTPL_PARTIALS_DIR, RUSHTPL_COMPONENTS_DIR,
//	RUSHTPL_LAYOUTS_DIR, RUSHTPL_EXTENSION, RUSHTPL_ENCODING, RUSHTPL_CACHE,
//	RUSHTPL_DEBUG, RUSHTPL_MAX_DEPTH, RUSHTPL_DEFAULT_LOCALE,
//	RUSHTPL_FALLBACK_LOCALE, RUSHTPL_LOCALES_DIR, RUSHTPL_WATCH_INTERVAL,
//	RUSHTPL_WATCH_DEBOUNCE
func ConfigFromEnv(files ...string) (Config, error) {
	const errCtx = "loading environment"
	cfg := DefaultConfig()
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("%s: %w", errCtx, err)
	}

	strVars := map[string]*string{
		"RUSHTPL_TEMPLATES_DIR":   &cfg.TemplatesDir,
		"RUSHTPL_PARTIALS_DIR":    &cfg.PartialsDir,
		"RUSHTPL_COMPONENTS_DIR":  &cfg.ComponentsDir,
		"RUSHTPL_LAYOUTS_DIR":     &cfg.LayoutsDir,
		"RUSHTPL_EXTENSION":       &cfg.Extension,
		"RUSHTPL_ENCODING":        &cfg.Encoding,
		"RUSHTPL_DEFAULT_LOCALE":  &cfg.DefaultLocale,
		"RUSHTPL_FALLBACK_LOCALE": &cfg.FallbackLocale,
		"RUSHTPL_LOCALES_DIR":     &cfg.LocalesDir,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	boolVars := map[string]*bool{
		"RUSHTPL_CACHE": &cfg.Cache,
		"RUSHTPL_DEBUG": &cfg.Debug,
	}
	for name, dst := range boolVars {
		if v, ok := os.LookupEnv(name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return cfg, fmt.Errorf("%s: %s: %w", errCtx, name, err)
			}
			*dst = b
		}
	}

	durVars := map[string]*time.Duration{
		"RUSHTPL_WATCH_INTERVAL": &cfg.WatchInterval,
		"RUSHTPL_WATCH_DEBOUNCE": &cfg.WatchDebounce,
	}
	for name, dst := range durVars {
		if v, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return cfg, fmt.Errorf("%s: %s: %w", errCtx, name, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("RUSHTPL_MAX_DEPTH"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("%s: RUSHTPL_MAX_DEPTH: %w", errCtx, err)
		}
		cfg.MaxDepth = n
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", errCtx, err)
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at render time.
func (c Config) Validate() error {
	var errs []error
	if c.Extension != "" && !strings.HasPrefix(c.Extension, ".") {
		errs = append(errs, fmt.Errorf("extension %q must start with a dot", c.Extension))
	}
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be at least 1, got %d", c.MaxDepth))
	}
	if _, err := lookupEncoding(c.Encoding); err != nil {
		errs = append(errs, err)
	}
	if c.WatchInterval < 0 || c.WatchDebounce < 0 {
		errs = append(errs, errors.New("watch durations must not be negative"))
	}
	return errors.Join(errs...)
}
