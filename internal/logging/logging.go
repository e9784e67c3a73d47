// Package logging builds the netguard.Logger used by the CLI: zerolog over a
// console writer, a rotating file, or both.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ambiyansyah-risyal/netguard"
)

const (
	WriterConsole = "console"
	WriterFile    = "file"
)

// Config selects the level and sinks.
type Config struct {
	Level   string     `yaml:"level"`
	Writers []string   `yaml:"writers"`
	File    FileConfig `yaml:"file"`
	NoColor bool       `yaml:"no_color"`

	// Console overrides os.Stderr for the console writer.
	Console io.Writer `yaml:"-"`
}

// FileConfig configures the rotating log file.
type FileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig logs info and above to the console.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Writers: []string{WriterConsole},
		File: FileConfig{
			Path:       "netguard.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// ParseLevel maps a level name onto zerolog. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// New builds the logger. The returned closer releases the log file and must
// be called once logging is done.
func New(cfg Config) (netguard.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)
	for _, name := range cfg.Writers {
		switch strings.ToLower(name) {
		case WriterConsole:
			out := cfg.Console
			if out == nil {
				out = os.Stderr
			}
			writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.NoColor})
		case WriterFile:
			if cfg.File.Path == "" {
				return nil, nil, fmt.Errorf("file writer needs a path")
			}
			file := &lumberjack.Logger{
				Filename:   cfg.File.Path,
				MaxSize:    cfg.File.MaxSizeMB,
				MaxBackups: cfg.File.MaxBackups,
				MaxAge:     cfg.File.MaxAgeDays,
				Compress:   cfg.File.Compress,
			}
			writers = append(writers, file)
			closer = file
		default:
			return nil, nil, fmt.Errorf("unknown log writer %q", name)
		}
	}
	if len(writers) == 0 {
		return netguard.NopLogger(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("component", "netguard").
		Logger()
	return netguard.NewZerologLogger(logger), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
