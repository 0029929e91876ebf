package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func Test_Config_Defaults(t *testing.T) {
	t.Setenv("CHGL_CONFIG", "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	clientCfg := cfg.ClientConfig()
	require.EqualValues(t, 1024, clientCfg.NumVertices)
	require.EqualValues(t, 1024, clientCfg.NumEdges)
	require.NoError(t, clientCfg.Validate())
	require.Equal(t, "tcp://*:5555", cfg.ServerConfig().ListenAddress)
}

func Test_Config_Sources(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "chgl.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte(`
log:
  level: debug
client:
  address: 10.0.0.1:7000
  num_vertices: 64
  num_edges: 32
  dial_timeout: 2s
server:
  reply_width: 4
`), 0644))

	t.Setenv("CHGL_CLIENT_NUM_EDGES", "48")
	t.Setenv("CHGL_CLIENT_WORKERS", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int64("num-vertices", 1024, "")
	flags.String("metrics-addr", "", "")
	require.NoError(t, flags.Parse([]string{"--metrics-addr", ":9100"}))

	cfg, err := Load(filePath, map[string]*pflag.Flag{
		"client.num_vertices": flags.Lookup("num-vertices"),
		"metrics.address":     flags.Lookup("metrics-addr"),
	})
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "10.0.0.1:7000", cfg.Client.Address)
	require.EqualValues(t, 64, cfg.Client.NumVertices, "unset flag must not override the file")
	require.EqualValues(t, 48, cfg.Client.NumEdges, "env overrides the file")
	require.Equal(t, 3, cfg.Client.Workers)
	require.Equal(t, 2*time.Second, cfg.Client.DialTimeout)
	require.Equal(t, 4, cfg.Server.ReplyWidth)
	require.Equal(t, ":9100", cfg.Metrics.Address)

	// Set flag wins
	require.NoError(t, flags.Parse([]string{"--num-vertices", "128"}))
	cfg, err = Load(filePath, map[string]*pflag.Flag{
		"client.num_vertices": flags.Lookup("num-vertices"),
	})
	require.NoError(t, err)
	require.EqualValues(t, 128, cfg.Client.NumVertices)
}

func Test_Config_Invalid(t *testing.T) {
	dir := t.TempDir()

	for name, content := range map[string]string{
		"level.yaml":    "log:\n  level: verbose\n",
		"vertices.yaml": "client:\n  num_vertices: 0\n",
		"width.yaml":    "server:\n  reply_width: 3\n",
	} {
		filePath := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

		_, err := Load(filePath, nil)
		require.Error(t, err, name)
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"), nil)
	require.Error(t, err)
}
