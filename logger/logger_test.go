package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCoreSplitsLevels(t *testing.T) {
	for _, debug := range []bool{false, true} {
		var stdout, stderr bytes.Buffer
		logger := zap.New(newCore(debug, zapcore.AddSync(&stdout), zapcore.AddSync(&stderr)))

		logger.Debug("debug entry")
		logger.Info("info entry", zap.Int("chips", 3))
		logger.Warn("warn entry")
		logger.Error("error entry")

		require.Contains(t, stdout.String(), `"info entry"`)
		require.Contains(t, stdout.String(), `"chips":3`)
		require.NotContains(t, stdout.String(), "warn entry")
		require.Contains(t, stderr.String(), "warn entry")
		require.Contains(t, stderr.String(), "error entry")
		require.NotContains(t, stderr.String(), "info entry")
		if debug {
			require.Contains(t, stdout.String(), "debug entry")
		} else {
			require.NotContains(t, stdout.String(), "debug entry")
		}
	}
}
