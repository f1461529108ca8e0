package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rendis/sectorscan/internal/engine/geo"
	"github.com/rendis/sectorscan/internal/engine/run"
	"github.com/rendis/sectorscan/internal/engine/scraper"
	"github.com/rendis/sectorscan/internal/engine/storage"
	"github.com/rendis/sectorscan/internal/metrics"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a search headless until the queue drains",
	Long: "Seeds the grid around the configured zone, runs batches until no sector is " +
		"left and merges the deduplicated places into the output CSV. Interrupting " +
		"finishes the current batch, exports and keeps the run resumable.",
	Example: "  sectorscan scan --keyword \"infirmier libéral\" --zone Lyon --grid 3\n" +
		"  sectorscan scan --lat 48.8566 --lng 2.3522 --block-km 10 --output paris.csv\n" +
		"  sectorscan scan --resume latest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}
		log := zap.L().With(zap.String("command", "scan"))

		searcher, err := run.NewProvider(cfg)
		if err != nil {
			return err
		}

		store, err := storage.NewStore(cfg.Output.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		if cfg.Metrics.Addr != "" {
			go func() {
				if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
					log.Error("metrics server failed", zap.Error(err))
				}
			}()
		}

		resumeID, _ := cmd.Flags().GetString("resume")
		session, err := openSession(ctx, store, searcher, resumeID)
		if err != nil {
			return err
		}

		params := session.Params()
		log.Info("scan started",
			zap.String("run", session.ID()),
			zap.String("keyword", params.Keyword),
			zap.String("zone", params.Zone),
			zap.Int("queued", session.State().Counts().Queued),
		)

		runErr := session.AutoRun(ctx, func(r scraper.BatchReport) {
			c := session.State().Counts()
			log.Info("batch done",
				zap.Int("processed", len(r.Processed)),
				zap.Int("failed", len(r.Failures)),
				zap.Int("queued", c.Queued),
				zap.Int("places", c.Results),
				zap.Int("credits", c.Credits),
			)
		})
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return eris.Wrap(runErr, "scan")
		}

		stats, err := session.Export()
		if err != nil {
			return err
		}

		c := session.State().Counts()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s: %d sectors processed, %d queued, %d API calls\n",
			session.ID(), c.Processed, c.Queued, c.Credits)
		fmt.Fprintf(out, "%d places (%d unique new rows) written to %s\n",
			c.Results, stats.Incoming, stats.Path)
		if c.Queued > 0 {
			fmt.Fprintf(out, "interrupted: resume with `sectorscan scan --resume %s`\n", session.ID())
		}
		return nil
	},
}

// openSession resumes resumeID ("latest" for the newest run) or seeds a new
// run from the configuration.
func openSession(ctx context.Context, store *storage.Store, searcher scraper.Searcher, resumeID string) (*run.Session, error) {
	if resumeID == "" {
		params, region, err := run.ResolveParams(ctx, cfg.Params())
		if err != nil {
			return nil, err
		}
		session := run.New(params, searcher, run.WithStore(store), run.WithRegion(region))
		return session, session.Save()
	}

	if resumeID == "latest" {
		info, err := store.LatestRun()
		if err != nil {
			return nil, err
		}
		resumeID = info.ID
	}

	params, _, err := store.LoadRun(resumeID)
	if err != nil {
		return nil, err
	}
	var region orb.MultiPolygon
	if params.RegionPath != "" {
		if region, err = geo.LoadRegion(params.RegionPath); err != nil {
			return nil, err
		}
	}
	return run.Resume(store, resumeID, searcher, run.WithRegion(region))
}

func init() {
	f := scanCmd.Flags()
	f.String("keyword", "", "search keyword")
	f.String("zone", "", "preset zone or place name used as the grid center")
	f.Float64("lat", 0, "grid center latitude (overrides --zone)")
	f.Float64("lng", 0, "grid center longitude (overrides --zone)")
	f.Int("grid", 3, "initial grid size n (n×n tiles)")
	f.Float64("block-km", 70, "initial tile side in kilometers")
	f.Float64("min-radius", 100, "radius in meters below which dense sectors are not split")
	f.Int("rps", 2, "requests per second, also the batch size")
	f.Int("dense-pages", 3, "pages fetched for a dense sector that cannot be split")
	f.String("region", "", "GeoJSON polygon; initial tiles outside it are skipped")
	f.String("output", "", "CSV file the results are merged into")
	f.String("db", "", "SQLite file holding run snapshots")
	f.String("call-log", "", "CSV file recording every provider call")
	f.Duration("page-delay", 0, "delay before requesting a follow-up page")
	f.Bool("chrome-tls", false, "use a Chrome TLS fingerprint for provider requests")
	f.String("proxy", "", "HTTP proxy for provider requests")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.String("resume", "", "resume a stored run by id, or \"latest\"")
	rootCmd.AddCommand(scanCmd)
}
