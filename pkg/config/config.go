package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/runlet/pkg/errors"
)

// Config holds every engine tunable. Values merge in order: embedded
// defaults, then a workspace runlet.toml, then RUNLET_* environment
// variables.
type Config struct {
	SettleDelay   time.Duration `koanf:"settle_delay" toml:"settle_delay"`
	QueueCapacity int           `koanf:"queue_capacity" toml:"queue_capacity"`
	MigrationsDir string        `koanf:"migrations_dir" toml:"migrations_dir"`
	Build         BuildConfig   `koanf:"build" toml:"build"`
	Journal       JournalConfig `koanf:"journal" toml:"journal"`
}

// BuildConfig controls the build adapter.
type BuildConfig struct {
	Command       string   `koanf:"command" toml:"command"`
	OutputDirs    []string `koanf:"output_dirs" toml:"output_dirs"`
	DefaultOutput string   `koanf:"default_output" toml:"default_output"`
}

// JournalConfig controls the optional sqlite action journal.
type JournalConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Path    string `koanf:"path" toml:"path"`
}

// Load returns the merged configuration for a workspace root.
func Load(workspaceRoot string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}

	// Workspace config, either hidden or plain
	for _, filename := range []string{".runlet.toml", "runlet.toml"} {
		path := filepath.Join(workspaceRoot, filename)
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", path)
			}
			break
		}
	}

	// RUNLET_BUILD__COMMAND=... maps to build.command
	envProvider := env.Provider("RUNLET_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "RUNLET_"))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the embedded defaults without touching the filesystem
// or environment. Tests and embedders that configure the engine in code
// start from here.
func Default() *Config {
	return &Config{
		SettleDelay:   2 * time.Second,
		QueueCapacity: 64,
		MigrationsDir: "migrations",
		Build: BuildConfig{
			Command:       "npm run build",
			OutputDirs:    []string{"dist", "build", "out", "output", ".next", "public"},
			DefaultOutput: "dist",
		},
	}
}

func validate(cfg *Config) error {
	if cfg.SettleDelay < 0 {
		return errors.Newf(errors.ErrConfigParse, "settle_delay must not be negative, got %s", cfg.SettleDelay)
	}
	if cfg.QueueCapacity <= 0 {
		return errors.Newf(errors.ErrConfigParse, "queue_capacity must be positive, got %d", cfg.QueueCapacity)
	}
	if cfg.Build.DefaultOutput == "" {
		return errors.New(errors.ErrConfigParse, "build.default_output must not be empty")
	}
	return nil
}
