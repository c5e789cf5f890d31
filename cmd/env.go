package main

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/db"
	"github.com/fleetops/fleetops/internal/events"
	"github.com/fleetops/fleetops/internal/fetcher"
	"github.com/fleetops/fleetops/internal/files"
	"github.com/fleetops/fleetops/internal/fleet"
	"github.com/fleetops/fleetops/internal/importer"
	"github.com/fleetops/fleetops/internal/normalize"
	"github.com/fleetops/fleetops/internal/search"
	"github.com/fleetops/fleetops/internal/store"
	"github.com/fleetops/fleetops/pkg/geocode"
)

// appEnv holds everything the commands share.
type appEnv struct {
	Store  store.Store
	Fleet  *fleet.Service
	Search *search.Engine
	nc     *nats.Conn // nil when events are disabled
}

// Close releases the store and the NATS connection.
func (e *appEnv) Close() {
	if e.nc != nil {
		if err := e.nc.Drain(); err != nil {
			zap.L().Warn("nats drain failed", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens and migrates the store and
// builds the fleet service. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	geocoder, err := initGeocoder()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Search = search.NewEngine(st, geocoder)

	imp, err := env.initImporter()
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Fleet = fleet.NewService(st, imp, env.Search)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "fleetops.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initGeocoder builds the configured provider behind retries and a breaker.
func initGeocoder() (geocode.Client, error) {
	gc := cfg.Geocode
	opts := []geocode.Option{
		geocode.WithTimeout(time.Duration(gc.TimeoutSecs) * time.Second),
		geocode.WithRateLimit(gc.RateLimit),
		geocode.WithUserAgent(gc.UserAgent),
		geocode.WithMaxResults(gc.MaxResults),
	}
	switch gc.Provider {
	case geocode.ProviderGoogle:
		opts = append(opts, geocode.WithAPIKey(gc.GoogleKey))
	case geocode.ProviderNominatim:
		opts = append(opts, geocode.WithBaseURL(gc.NominatimURL))
	}

	client, err := geocode.New(gc.Provider, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "init geocoder")
	}
	zap.L().Debug("geocoder ready", zap.String("provider", client.Name()))

	return search.Guard(client, search.GuardConfig{
		Retries:          gc.Retries,
		BreakerThreshold: gc.BreakerThreshold,
		BreakerReset:     time.Duration(gc.BreakerResetSecs) * time.Second,
	}), nil
}

func (e *appEnv) initImporter() (*importer.Pipeline, error) {
	disks, err := files.NewDisks(cfg.Files)
	if err != nil {
		return nil, eris.Wrap(err, "init disks")
	}

	normalizer, err := normalize.New(normalize.WithCallingCode(cfg.Import.DefaultCallingCode))
	if err != nil {
		return nil, eris.Wrap(err, "init normalizer")
	}

	opts := []importer.Option{
		importer.WithWorkers(cfg.Import.Workers),
		importer.WithPersistPlaces(cfg.Import.PersistPlaces),
		importer.WithDefaultDisk(cfg.Files.DefaultDisk),
	}
	if cfg.Events.NATSURL != "" {
		pub, nc, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			return nil, eris.Wrap(err, "connect nats")
		}
		e.nc = nc
		opts = append(opts, importer.WithPublisher(pub))
	}

	return importer.New(e.Store, disks, fetcher.NewSheetReader(), normalizer, e.Store, opts...), nil
}
