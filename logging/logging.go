package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	cfg "github.com/maastricht-university/talktime/config"
)

// Setup builds the process logger. Output always goes to stderr and, when a
// file is configured, to a size-rotated log file as well.
func Setup(c cfg.Logging) (*logrus.Logger, io.Closer, error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(c.Level)))
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	log := logrus.New()
	log.SetLevel(lvl)

	switch strings.ToLower(c.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", c.Format)
	}

	var closer io.Closer = nopCloser{}
	if c.File != "" {
		rot := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rot))
		closer = rot
	} else {
		log.SetOutput(os.Stderr)
	}
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
