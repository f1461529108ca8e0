package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rendis/sectorscan/internal/config"
	"github.com/rendis/sectorscan/internal/engine/results"
	"github.com/rendis/sectorscan/internal/engine/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Merge the places of a stored run into a CSV file",
	Long: "Reads a run from the database, keeps the last record per place_id and " +
		"merges it into the CSV. Existing rows and columns are preserved.",
	Example: "  sectorscan export --run latest --output resultats.csv",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := storage.NewStore(cfg.Output.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, _ := cmd.Flags().GetString("run")
		if runID == "" || runID == "latest" {
			info, err := store.LatestRun()
			if err != nil {
				return err
			}
			runID = info.ID
		}

		places, err := store.Places(runID)
		if err != nil {
			return err
		}
		unique := results.ExportDeduplicated(places)

		stats, err := storage.ExportToFile(unique, config.NormalizeOutputPath(cfg.Output.CSV))
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("run", runID),
			zap.String("path", stats.Path),
			zap.Int("existing", stats.Existing),
			zap.Int("incoming", stats.Incoming),
			zap.Int("written", stats.Written),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%d places (%d unique) from run %s: %d rows in %s\n",
			len(places), len(unique), runID, stats.Written, stats.Path)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("run", "latest", "run id to export, or \"latest\"")
	exportCmd.Flags().String("db", "", "SQLite file holding run snapshots")
	exportCmd.Flags().String("output", "", "CSV file the results are merged into")
	rootCmd.AddCommand(exportCmd)
}
