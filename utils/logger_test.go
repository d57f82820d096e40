package utils

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func bufferLogger(buf *bytes.Buffer) *Logger {
	inner := logrus.New()
	inner.SetOutput(buf)
	inner.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	inner.SetLevel(logrus.DebugLevel)
	return &Logger{inner: inner, entry: logrus.NewEntry(inner)}
}

func TestWithFieldsStampsChildOnly(t *testing.T) {
	var buf bytes.Buffer
	parent := bufferLogger(&buf)
	child := parent.WithFields(map[string]any{"session": "abc-123"})

	child.Info("window saved %d", 7)
	assert.Contains(t, buf.String(), "session=abc-123")
	assert.Contains(t, buf.String(), `msg="window saved 7"`)

	buf.Reset()
	parent.Warn("plain")
	assert.Contains(t, buf.String(), "msg=plain")
	assert.NotContains(t, buf.String(), "session=")
}

func TestWithFieldsSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := bufferLogger(&buf)
	parent.inner.SetLevel(logrus.WarnLevel)
	child := parent.WithFields(map[string]any{"session": "s"})

	child.Debug("hidden")
	assert.Empty(t, buf.String())
	child.Error("shown")
	assert.Contains(t, buf.String(), "level=error")
}
