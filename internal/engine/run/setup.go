package run

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rendis/sectorscan/internal/config"
	"github.com/rendis/sectorscan/internal/engine/geo"
	"github.com/rendis/sectorscan/internal/engine/scraper"
	"github.com/rendis/sectorscan/internal/engine/storage"
	"github.com/rendis/sectorscan/internal/model"
)

// NewProvider builds the Places client described by cfg. Without a
// credential it returns a nil searcher and the ConfigurationError, which
// callers pass to WithDisabledReason.
func NewProvider(cfg *config.Config) (scraper.Searcher, error) {
	if err := cfg.RequireCredential(); err != nil {
		return nil, err
	}

	opts := []scraper.Option{
		scraper.WithPageDelay(cfg.Provider.PageDelay),
		scraper.WithTimeout(cfg.Provider.Timeout),
		scraper.WithCallRecorder(storage.NewCallLog(cfg.Output.CallLog)),
	}
	if cfg.Provider.BaseURL != "" {
		opts = append(opts, scraper.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.ChromeTLS {
		opts = append(opts, scraper.WithChromeTLS())
	}
	if cfg.Provider.Proxy != "" {
		opts = append(opts, scraper.WithProxy(cfg.Provider.Proxy))
	}

	client, err := scraper.NewClient(cfg.Provider.APIKey, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "run: build provider client")
	}
	return client, nil
}

// ResolveParams completes params with a center. Explicit coordinates win,
// then the region centroid when no zone is named, then the zone name
// looked up in the presets or the geocoder. The loaded region is returned
// for WithRegion.
func ResolveParams(ctx context.Context, params model.SearchParams) (model.SearchParams, orb.MultiPolygon, error) {
	params.OutputPath = config.NormalizeOutputPath(params.OutputPath)

	var region orb.MultiPolygon
	if params.RegionPath != "" {
		mp, err := geo.LoadRegion(params.RegionPath)
		if err != nil {
			return params, nil, err
		}
		region = mp
	}

	switch {
	case params.CenterLat != 0 || params.CenterLng != 0:
	case len(region) > 0 && params.Zone == "":
		params.CenterLat, params.CenterLng = geo.RegionCenter(region)
	default:
		zone := params.Zone
		if zone == "" {
			zone = geo.DefaultZone
		}
		z, err := geo.ResolveCenter(ctx, zone)
		if err != nil {
			return params, nil, eris.Wrapf(err, "run: resolve zone %q", zone)
		}
		params.Zone = z.Name
		params.CenterLat, params.CenterLng = z.Lat, z.Lng
	}

	if math.Abs(params.CenterLat) > geo.MaxCenterLat {
		return params, nil, &config.ConfigurationError{
			Key:    "search.center_lat",
			Reason: fmt.Sprintf("center %.4f is too close to a pole", params.CenterLat),
		}
	}

	zap.L().Debug("search center resolved",
		zap.String("zone", params.Zone),
		zap.Float64("lat", params.CenterLat),
		zap.Float64("lng", params.CenterLng),
	)
	return params, region, nil
}
