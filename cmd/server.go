package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/service/server"
)

const (
	FlagListen = "listen"
)

// GetServerCmd returns the stub graph service start command.
func GetServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the stub graph service (counts distinct inclusions)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appCfg.ServerConfig()
			cfg.Logger = logger

			// Init service
			svc, err := server.NewGraphService(cfg)
			if err != nil {
				return err
			}
			if err := svc.Listen(context.Background(), ""); err != nil {
				return err
			}
			svc.Start()

			// Wait for signal
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			<-signalCh

			svc.Stop()
			logger.Info("graph service stopped", zap.Int("size", svc.Size()))

			return nil
		},
	}
	cmd.Flags().String(FlagListen, server.DefaultListenAddress, "(optional) ZeroMQ endpoint to bind")
	cmd.Flags().Int(FlagReplyWidth, 0, "(optional) integer reply width in bytes: 0 (8 bytes), 1, 2, 4, 8")

	bindFlag("server.listen", cmd.Flags(), FlagListen)
	bindFlag("server.reply_width", cmd.Flags(), FlagReplyWidth)

	return cmd
}

func init() {
	rootCmd.AddCommand(GetServerCmd())
}
