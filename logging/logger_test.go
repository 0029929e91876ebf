package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_Logging_ParseLevel(t *testing.T) {
	for name, expected := range map[string]zap.AtomicLevel{
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"":        zap.NewAtomicLevelAt(zap.InfoLevel),
		"WARNING": zap.NewAtomicLevelAt(zap.WarnLevel),
		"error":   zap.NewAtomicLevelAt(zap.ErrorLevel),
	} {
		lvl, err := ParseLevel(name)
		require.NoError(t, err, name)
		require.Equal(t, expected.Level(), lvl, name)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func Test_Logging_FileOutput(t *testing.T) {
	for _, rotate := range []bool{false, true} {
		filePath := filepath.Join(t.TempDir(), "logs", "chgl.log")

		cfg := DefaultConfig()
		cfg.Format = "json"
		cfg.Outputs = []string{filePath}
		cfg.Rotation.Enable = rotate

		lg, err := Setup(cfg)
		require.NoError(t, err)
		lg.Info("hello", zap.Bool("rotate", rotate))
		_ = lg.Sync()

		raw, err := os.ReadFile(filePath)
		require.NoError(t, err)
		require.Contains(t, string(raw), `"msg":"hello"`)
	}

	cfg := DefaultConfig()
	cfg.Format = "xml"
	_, err := Setup(cfg)
	require.Error(t, err)
}
