package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestZerologProvider_Levels(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProviderWithWriter(&buf, LevelInfo)
	logger := provider.GetLogger()

	logger.Debug("hidden")
	logger.Info("shown", SamplesKey, 4)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, 4.0, entries[0][SamplesKey])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
}

func TestZerologProvider_WithAndName(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProviderWithWriter(&buf, LevelDebug)

	logger := provider.GetLoggerWithName("trainer").With(ModelNameKey, "logistic_regression")
	logger.Debug("fitting", OperationKey, OperationFit)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "trainer", entries[0][ComponentKey])
	assert.Equal(t, "logistic_regression", entries[0][ModelNameKey])
	assert.Equal(t, OperationFit, entries[0][OperationKey])
}

func TestZerologProvider_ErrorFirstField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProviderWithWriter(&buf, LevelInfo).GetLogger()

	logger.Error("save failed", fmt.Errorf("disk full"), ArtifactNameKey, "1__lightgbm__dvach")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "disk full", entries[0]["error"])
	assert.Equal(t, "1__lightgbm__dvach", entries[0][ArtifactNameKey])
}

func TestZerologProvider_ObjectMarshaler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProviderWithWriter(&buf, LevelInfo).GetLogger()

	logger.Warn("not converged", "warning", scigoerrors.NewConvergenceWarning("lbfgs", 100, ""))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	warning, ok := entries[0]["warning"].(map[string]interface{})
	require.True(t, ok, "warning should be a nested object")
	assert.Equal(t, "ConvergenceWarning", warning["type"])
	assert.Equal(t, 100.0, warning["iterations"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	assert.Panics(t, func() { ToLogLevel("verbose") })
}

func TestGlobalProvider(t *testing.T) {
	provider, captured := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	defer SetProvider(NewZerologProvider(LevelInfo))

	GetLoggerWithName("storage").Info("artifact saved", ArtifactNameKey, "1__logistic_regression__dvach")

	assert.True(t, captured.ContainsMessage("artifact saved"))
	assert.True(t, captured.ContainsField(ComponentKey, "storage"))
	assert.True(t, captured.ContainsField(ArtifactNameKey, "1__logistic_regression__dvach"))
}

func TestSetup(t *testing.T) {
	file := t.TempDir() + "/serve.log"
	closer, err := Setup(Options{Level: "debug", File: file, MaxSizeMB: 1})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, closer.Close())
		SetProvider(NewZerologProvider(LevelInfo))
		scigoerrors.SetWarningHandler(func(error) {})
	}()

	GetLogger().Debug("to file")

	_, err = Setup(Options{Format: "xml"})
	assert.Error(t, err)
	_, err = Setup(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestTestLogger(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)

	logger.Debug("dropped")
	logger.With(DatasetNameKey, "dvach").Warn("missing split", SplitKey, "test")
	logger.Error("failed", fmt.Errorf("boom"), OperationKey, OperationLoad)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "dvach", entries[0][DatasetNameKey])
	assert.Equal(t, "boom", entries[1]["error"])
	assert.False(t, logger.ContainsMessage("dropped"))

	logger.Clear()
	assert.Equal(t, "", logger.String())
}

func TestTestLogger_Concurrent(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With("worker", i).Info("tick")
		}(i)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}
