package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/sectorscan/internal/engine/geo"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List the preset zones usable with --zone",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		for _, z := range geo.Zones() {
			fmt.Fprintf(out, "%-22s %9.4f %10.4f\n", z.Name, z.Lat, z.Lng)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "sectorscan "+version)
	},
}

func init() {
	rootCmd.AddCommand(zonesCmd, versionCmd)
}
