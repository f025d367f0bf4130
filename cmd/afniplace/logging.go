package main

import (
	"fmt"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"

	"afniplace/pkg/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger builds the diagnostic logger. When a log file is configured the
// output goes to a rotating file instead of stderr. The returned closer
// releases the file and must be called when the run ends.
func newLogger(cfg *config.Config) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	if cfg.Logging.File == "" {
		log.SetOutput(os.Stderr)
		return log, nopCloser{}, nil
	}
	fmt.Printf("Sending log messages to: %s\n", cfg.Logging.File)
	l := &lumberjack.Logger{
		Filename: cfg.Logging.File,
		MaxSize:  cfg.Logging.MaxSize, // megabytes
		MaxAge:   cfg.Logging.MaxAge,  // days
	}
	log.SetOutput(l)
	return log, l, nil
}
