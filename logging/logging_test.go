package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	cfg "github.com/maastricht-university/talktime/config"
)

func TestSetupLevelAndFormat(t *testing.T) {
	t.Parallel()

	log, closer, err := Setup(cfg.Logging{Level: "DEBUG", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	require.Equal(t, logrus.DebugLevel, log.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestSetupRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, _, err := Setup(cfg.Logging{Level: "loud"})
	require.Error(t, err)

	_, _, err = Setup(cfg.Logging{Level: "info", Format: "xml"})
	require.ErrorContains(t, err, "xml")
}

func TestSetupWritesRotatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "talktime.log")
	log, closer, err := Setup(cfg.Logging{Level: "info", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.WithField("request_id", "abc").Info("hello")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"request_id":"abc"`)
	require.Contains(t, string(b), `"msg":"hello"`)
}
