package main

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/config"
	"github.com/pnnl/chgl/logging"
)

const (
	FlagConfig      = "config"
	FlagLogLevel    = "log-level"
	FlagLogFormat   = "log-format"
	FlagLogOutput   = "log-output"
	FlagMetricsAddr = "metrics-addr"
)

var (
	// appCfg and logger are set up before any sub-command runs.
	appCfg *config.Config
	logger = zap.NewNop()
	// bindings maps config keys to flags, sub-commands add their own.
	bindings = make(map[string]*pflag.Flag)
)

// rootCmd is a base command.
var rootCmd = &cobra.Command{
	Use:           "chgl",
	Short:         "CHGL graph construction client and stub graph service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Parse inputs
		cfgPath, err := cmd.Flags().GetString(FlagConfig)
		if err != nil {
			return err
		}

		cfg, err := config.Load(cfgPath, bindings)
		if err != nil {
			return err
		}
		appCfg = cfg

		lg, err := logging.Setup(cfg.Log)
		if err != nil {
			return err
		}
		logger = lg

		if cfg.Metrics.Address != "" {
			go serveMetrics(cfg.Metrics.Address)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// serveMetrics exposes the Prometheus default registry.
func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics server started", zap.String("address", address))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", zap.Error(err))
	}
}

// bindFlag registers a flag to override the config key.
func bindFlag(key string, flags *pflag.FlagSet, name string) {
	bindings[key] = flags.Lookup(name)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String(FlagConfig, "", "(optional) config file path (default: ./chgl.yaml, $HOME/.chgl/chgl.yaml)")
	flags.String(FlagLogLevel, "info", "(optional) log level: debug, info, warn, error")
	flags.String(FlagLogFormat, "console", "(optional) log format: console, json")
	flags.StringSlice(FlagLogOutput, []string{"stderr"}, "(optional) log outputs: stdout, stderr or file paths")
	flags.String(FlagMetricsAddr, "", "(optional) Prometheus metrics listen address (e.g. :9100)")

	bindFlag("log.level", flags, FlagLogLevel)
	bindFlag("log.format", flags, FlagLogFormat)
	bindFlag("log.outputs", flags, FlagLogOutput)
	bindFlag("metrics.address", flags, FlagMetricsAddr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("rootCmd.Execute: %v", err)
	}
}
