package main

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pnnl/chgl/service/client"
	"github.com/pnnl/chgl/storage"
)

const (
	FlagNumVertices = "num-vertices"
	FlagNumEdges    = "num-edges"
	FlagDensity     = "density"
	FlagSeed        = "seed"
	FlagWorkload    = "workload"
	FlagFlushEvery  = "flush-every"
	FlagReplyWidth  = "reply-width"
	FlagWorkers     = "workers"
)

// GetClientCmd returns the client command: build a graph and print its size.
func GetClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client [address]",
		Short: "Connect to the graph service, add inclusions and print the graph size",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Parse inputs
			density, err := cmd.Flags().GetFloat64(FlagDensity)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagDensity)
			}
			seed, err := cmd.Flags().GetInt64(FlagSeed)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagSeed)
			}
			workloadPath, err := cmd.Flags().GetString(FlagWorkload)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagWorkload)
			}
			flushEvery, err := cmd.Flags().GetInt(FlagFlushEvery)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagFlushEvery)
			}
			if flushEvery < 0 {
				return errors.Newf("%s: must be GTE 0", FlagFlushEvery)
			}

			cfg := appCfg.ClientConfig()
			if len(args) > 0 {
				cfg.Address = args[0]
			}
			cfg.Logger = logger
			cfg.Registerer = prometheus.DefaultRegisterer

			// Build the workload
			var w storage.Workload
			if workloadPath != "" {
				w, err = storage.LoadWorkload(workloadPath)
				if err != nil {
					return err
				}
				cfg.NumVertices, cfg.NumEdges = w.NumVertices, w.NumEdges
			} else {
				if seed == 0 {
					seed = time.Now().UnixNano()
				}
				w, err = storage.GenerateWorkload(cfg.NumVertices, cfg.NumEdges, density, rand.New(rand.NewSource(seed)))
				if err != nil {
					return err
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			size, err := runWorkload(ctx, cfg, w, flushEvery)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), size)

			return nil
		},
	}
	cmd.Flags().Int64(FlagNumVertices, client.DefaultNumVertices, "(optional) number of vertices")
	cmd.Flags().Int64(FlagNumEdges, client.DefaultNumEdges, "(optional) number of edges")
	cmd.Flags().Float64(FlagDensity, storage.DefaultDensity, "(optional) probability of a vertex / edge inclusion")
	cmd.Flags().Int64(FlagSeed, 0, "(optional) random seed (0: time based)")
	cmd.Flags().String(FlagWorkload, "", "(optional) replay a workload file instead of random inclusions")
	cmd.Flags().Int(FlagFlushEvery, 0, "(optional) flush after every N inclusions (0: single flush on size)")
	cmd.Flags().Int(FlagReplyWidth, 0, "(optional) integer reply width in bytes: 0 (auto), 1, 2, 4, 8")
	cmd.Flags().Int(FlagWorkers, 0, "(optional) deferred receive workers (default: number of CPUs)")

	bindFlag("client.num_vertices", cmd.Flags(), FlagNumVertices)
	bindFlag("client.num_edges", cmd.Flags(), FlagNumEdges)
	bindFlag("client.reply_width", cmd.Flags(), FlagReplyWidth)
	bindFlag("client.workers", cmd.Flags(), FlagWorkers)

	return cmd
}

// runWorkload sends the workload inclusions and returns the graph size reported by the service.
func runWorkload(ctx context.Context, cfg client.Config, w storage.Workload, flushEvery int) (int64, error) {
	start := time.Now()

	c, err := client.Dial(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	for i, pair := range w.Inclusions {
		if err := c.AddInclusion(pair.Vertex, pair.Edge); err != nil {
			return 0, err
		}
		if flushEvery > 0 && (i+1)%flushEvery == 0 {
			if err := c.Flush(ctx); err != nil {
				return 0, err
			}
		}
	}

	f, err := c.Size(ctx)
	if err != nil {
		return 0, err
	}
	size, err := f.Wait(ctx)
	if err != nil {
		return 0, err
	}

	stats := c.Stats()
	logger.Info(fmt.Sprintf("%s: %s inclusions sent (%s collapsed) within %v",
		c, humanize.Comma(stats.InclusionsSent), humanize.Comma(stats.DuplicatesCollapsed), time.Since(start)),
		zap.Int64("size", size),
	)

	return size, nil
}

func init() {
	rootCmd.AddCommand(GetClientCmd())
}
