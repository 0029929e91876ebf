package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pnnl/chgl/service/client"
	"github.com/pnnl/chgl/storage"
)

const (
	FlagFilePath = "file-path"
)

// GetGenerateCmd returns generate workload command.
func GetGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random inclusion workload file",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Parse inputs
			filePath, err := cmd.Flags().GetString(FlagFilePath)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagFilePath)
			}
			numVertices, err := cmd.Flags().GetInt64(FlagNumVertices)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagNumVertices)
			}
			numEdges, err := cmd.Flags().GetInt64(FlagNumEdges)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagNumEdges)
			}
			density, err := cmd.Flags().GetFloat64(FlagDensity)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagDensity)
			}
			seed, err := cmd.Flags().GetInt64(FlagSeed)
			if err != nil {
				return errors.Wrapf(err, "%s flag", FlagSeed)
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			// Work
			w, err := storage.GenerateWorkload(numVertices, numEdges, density, rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}
			if err := storage.SaveWorkload(filePath, w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s inclusions over %dx%d\n", filePath, humanize.Comma(int64(len(w.Inclusions))), numVertices, numEdges)

			return nil
		},
	}
	cmd.Flags().String(FlagFilePath, "./workload.cbor", "(optional) output file path")
	cmd.Flags().Int64(FlagNumVertices, client.DefaultNumVertices, "(optional) number of vertices")
	cmd.Flags().Int64(FlagNumEdges, client.DefaultNumEdges, "(optional) number of edges")
	cmd.Flags().Float64(FlagDensity, storage.DefaultDensity, "(optional) probability of a vertex / edge inclusion")
	cmd.Flags().Int64(FlagSeed, 0, "(optional) random seed (0: time based)")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetGenerateCmd())
}
