package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kass/waykit/pkg/grid"
)

func newCellCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cell",
		Short: "Encode, decode and expand grid cell ids",
	}

	encodeCmd := &cobra.Command{
		Use:   "encode <lat> <lon>",
		Short: "Print the id of the cell containing a coordinate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[0])
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[1])
			}

			index, err := grid.NewIndex[struct{}](a.cfg.Grid.CellSizeM, a.origin())
			if err != nil {
				return err
			}
			c, err := index.CellAt(lat, lon)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%d\n", c.ID(), c.Col, c.Row)
			return nil
		},
	}

	decodeCmd := &cobra.Command{
		Use:   "decode <id>...",
		Short: "Print the column and row of cell ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				c, err := grid.DecodeCellID(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%d\n", id, c.Col, c.Row)
			}
			return nil
		},
	}

	var radius int
	neighborsCmd := &cobra.Command{
		Use:   "neighbors <id>",
		Short: "Print the ids of the cells around a cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := grid.NeighborsSquare(args[0], radius)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	neighborsCmd.Flags().IntVarP(&radius, "radius", "r", 1, "Neighborhood radius in cells")

	cmd.AddCommand(encodeCmd, decodeCmd, neighborsCmd)
	return cmd
}
