package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "article-analyzer"

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

var sink *axiomSink

// Init replaces the global zerolog logger. Every event goes to stdout and,
// when configured, to a rotating file and to Axiom.
func Init(opts Options) error {
	out := []io.Writer{stdoutWriter(opts.Pretty)}

	if opts.File != "" {
		w, err := rotatingFile(opts)
		if err != nil {
			return err
		}
		out = append(out, w)
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		s, err := newAxiomSink(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
		if err != nil {
			fmt.Fprintf(os.Stderr, "axiom logging disabled: %v\n", err)
		} else {
			sink = s
			out = append(out, s)
		}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(out...)).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	return nil
}

// Close drains the Axiom sink, if any.
func Close() {
	if sink != nil {
		sink.Close()
		sink = nil
	}
}

func stdoutWriter(pretty bool) io.Writer {
	if pretty {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	return os.Stdout
}

func rotatingFile(opts Options) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}
