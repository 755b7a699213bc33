package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pavescan/internal/analyze"
	"github.com/sells-group/pavescan/internal/geo"
	"github.com/sells-group/pavescan/internal/tilegrid"
)

var (
	gridLat    float64
	gridLng    float64
	gridRadius float64
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Plan the tile grid for a property without fetching imagery",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := analyze.DefaultOptions()
		applyGridConfig(&opts)

		grid, err := tilegrid.PlanPoint(geo.Point{Lat: gridLat, Lng: gridLng}, gridRadius, opts.Grid)
		if err != nil {
			return eris.Wrap(err, "plan grid")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(grid)
	},
}

func init() {
	gridCmd.Flags().Float64Var(&gridLat, "lat", 0, "property latitude (required)")
	gridCmd.Flags().Float64Var(&gridLng, "lng", 0, "property longitude (required)")
	gridCmd.Flags().Float64Var(&gridRadius, "radius", 0, "region radius in meters")
	_ = gridCmd.MarkFlagRequired("lat")
	_ = gridCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(gridCmd)
}
