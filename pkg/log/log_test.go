package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hperrors "github.com/YuminosukeSato/housepricer/pkg/errors"
)

func TestTestLoggerCapturesFields(t *testing.T) {
	logger, buffer := NewTestLogger(LevelDebug)

	logger.With(ModelKindKey, "forest").Info("Training completed",
		OperationKey, OperationFit,
		SamplesKey, 1460,
		R2ScoreKey, 0.97,
	)
	logger.Error("Training failed", fmt.Errorf("singular matrix"), ModelKindKey, "linear")

	require.NotEmpty(t, buffer.String())
	assert.True(t, logger.ContainsMessage("Training completed"))
	assert.True(t, logger.ContainsField(ModelKindKey, "forest"))
	assert.True(t, logger.ContainsField(SamplesKey, 1460.0))
	assert.True(t, logger.ContainsField(ErrAttrKey, "singular matrix"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestTestLoggerLevelFiltering(t *testing.T) {
	logger, _ := NewTestLogger(LevelWarn)
	ctx := context.Background()

	assert.False(t, logger.Enabled(ctx, LevelInfo))
	assert.True(t, logger.Enabled(ctx, LevelError))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.False(t, logger.ContainsMessage("hidden"))
	assert.True(t, logger.ContainsMessage("shown"))
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo)

	logger := p.GetLoggerWithName("registry").With(ModelKindKey, "tree")
	logger.Debug("not emitted")
	logger.Info("fitted", SamplesKey, 200, DurationMsKey, int64(12))
	logger.Error("fit failed", hperrors.NewTrainingError("tree", fmt.Errorf("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &info))
	assert.Equal(t, "info", info["level"])
	assert.Equal(t, "fitted", info["message"])
	assert.Equal(t, "registry", info[ComponentKey])
	assert.Equal(t, "tree", info[ModelKindKey])
	assert.Equal(t, 200.0, info[SamplesKey])

	var failure map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failure))
	assert.Contains(t, failure["error"], "training tree failed")
	detail, ok := failure["error_detail"].(map[string]interface{})
	require.True(t, ok, "typed errors are marshalled as objects")
	assert.Equal(t, "TrainingError", detail["type"])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
}

func TestSetupZerologRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	SetupZerolog(&buf, LevelDebug)
	defer SetupZerolog(&bytes.Buffer{}, LevelInfo)

	hperrors.Warn(hperrors.NewUnknownCategoryWarning("Heating", "Solar", 1))

	assert.Contains(t, buf.String(), "UnknownCategoryWarning")
	assert.Contains(t, buf.String(), `"ml.component":"warnings"`)
}

func TestSetupLoggerSlog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLogger("debug", &buf))
	defer SetLoggerProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo))

	GetLoggerWithName("cli").Error("load failed", hperrors.NewValueError("Load", "bad header"))

	out := buf.String()
	assert.Contains(t, out, `"severity":"ERROR"`)
	assert.Contains(t, out, `"message":"load failed"`)
	assert.Contains(t, out, `"stacktrace"`)

	assert.Error(t, SetupLogger("verbose", &buf))
}

func TestToLogLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error", ""} {
		_, err := ToLogLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ToLogLevel("trace")
	assert.Error(t, err)
}
