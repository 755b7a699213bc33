package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pavescan/internal/analyze"
	"github.com/sells-group/pavescan/internal/geo"
)

var (
	analyzeLat     float64
	analyzeLng     float64
	analyzeAddress string
	analyzeRadius  float64
	analyzeTiles   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze paving surfaces for one property",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		orch, err := buildOrchestrator(st)
		if err != nil {
			return err
		}

		point := geo.Point{Lat: analyzeLat, Lng: analyzeLng}
		job, err := st.CreateJob(ctx, point, analyzeAddress)
		if err != nil {
			return eris.Wrap(err, "create job")
		}

		report, err := orch.Analyze(ctx, analyze.Request{
			Point:   point,
			Address: analyzeAddress,
			RadiusM: analyzeRadius,
			JobID:   job.ID,
		})
		if err != nil {
			return eris.Wrap(err, "analyze property")
		}

		zap.L().Info("property analyzed",
			zap.String("job_id", job.ID),
			zap.Float64("paved_sqft", report.Result.TotalPavedSqft),
			zap.Float64("condition", report.Result.ConditionScore),
			zap.String("lead_quality", string(report.Result.LeadQuality)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if analyzeTiles {
			return enc.Encode(report)
		}
		return enc.Encode(report.Result)
	},
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzeLat, "lat", 0, "property latitude (required)")
	analyzeCmd.Flags().Float64Var(&analyzeLng, "lng", 0, "property longitude (required)")
	analyzeCmd.Flags().StringVar(&analyzeAddress, "address", "", "street address for parcel lookup")
	analyzeCmd.Flags().Float64Var(&analyzeRadius, "radius", 0, "estimated boundary radius in meters when no parcel resolves")
	analyzeCmd.Flags().BoolVar(&analyzeTiles, "tiles", false, "include the per-tile breakdown in output")
	_ = analyzeCmd.MarkFlagRequired("lat")
	_ = analyzeCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(analyzeCmd)
}
