package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputRedirectsLoggers(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)

	Info("migration started")
	Warn("low disk")
	Trace("poll detail")

	out := structured.String()
	assert.Contains(t, out, `"msg":"migration started"`)
	assert.Contains(t, out, `"msg":"low disk"`)
	// The default structured logger sits at debug level, trace stays below it
	assert.NotContains(t, out, "poll detail")

	require.NotNil(t, Structured())
	require.NotNil(t, HumanReadable())
	HumanReadable().Warn("queue backed up")
	assert.Contains(t, human.String(), "queue backed up")
}

func TestForServiceTagsRecords(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)

	serviceLog := ForService("migration")
	require.NotNil(t, serviceLog)
	serviceLog.Info("tick")

	var record map[string]any
	require.NoError(t, json.Unmarshal(structured.Bytes(), &record))
	assert.Equal(t, "migration", record["service"])
	assert.Equal(t, "tick", record["msg"])
}

func TestNewFileLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "svc", "test.log")

	levelVar := new(slog.LevelVar)
	levelVar.Set(LevelTrace)
	logger, closeFn, err := NewFileLogger(logPath, "testsvc", levelVar)
	require.NoError(t, err)

	logger.Log(context.TODO(), LevelTrace, "deep detail")
	logger.Info("service ready")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `"service":"testsvc"`)
	assert.Contains(t, content, `"msg":"service ready"`)
	// Custom levels keep their labels in file logs
	assert.Contains(t, content, `"level":"TRACE"`)
}
