package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/dmv-price-tracker/internal/output"
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby <lat> <lon> [k]",
	Short: "Print the k rows of the combined dataset nearest a point",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("nearby"); err != nil {
			return err
		}

		lat, lon, k, err := parseNearbyArgs(args)
		if err != nil {
			return err
		}

		t, idx, err := newArtifact(cfg.Output.Path).load()
		if err != nil {
			return err
		}

		data, err := output.Encode(selectRows(t, idx.Nearest(lon, lat, k), true), output.FormatNDJSON)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(nearbyCmd)
}

func parseNearbyArgs(args []string) (lat, lon float64, k int, err error) {
	lat, err = strconv.ParseFloat(args[0], 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, 0, fmt.Errorf("invalid latitude %q", args[0])
	}
	lon, err = strconv.ParseFloat(args[1], 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, 0, fmt.Errorf("invalid longitude %q", args[1])
	}
	k = 5
	if len(args) == 3 {
		k, err = strconv.Atoi(args[2])
		if err != nil || k < 1 {
			return 0, 0, 0, fmt.Errorf("invalid k %q", args[2])
		}
	}
	return lat, lon, k, nil
}
