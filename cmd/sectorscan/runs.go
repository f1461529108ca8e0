package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/rendis/sectorscan/internal/engine/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs stored in the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := storage.NewStore(cfg.Output.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		infos, err := store.ListRuns()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no runs in %s\n", store.Path())
			return nil
		}

		rows := make([][]string, 0, len(infos))
		for _, r := range infos {
			state := "in progress"
			if r.Done() {
				state = "done"
			}
			rows = append(rows, []string{
				r.ID,
				r.Keyword,
				r.Zone,
				strconv.Itoa(r.Queued),
				strconv.Itoa(r.Processed),
				strconv.Itoa(r.Results),
				strconv.Itoa(r.Credits),
				state,
				r.UpdatedAt.Local().Format("2006-01-02 15:04"),
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("RUN", "KEYWORD", "ZONE", "QUEUED", "PROCESSED", "PLACES", "CALLS", "STATE", "UPDATED").
			Rows(rows...)
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	},
}

func init() {
	runsCmd.Flags().String("db", "", "SQLite file holding run snapshots")
	rootCmd.AddCommand(runsCmd)
}
