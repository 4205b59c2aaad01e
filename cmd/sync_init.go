package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/fetcher"
	"github.com/foodguide/stallsync/internal/hours"
	"github.com/foodguide/stallsync/internal/monitoring"
	"github.com/foodguide/stallsync/internal/store"
	"github.com/foodguide/stallsync/internal/syncer"
	anthropicpkg "github.com/foodguide/stallsync/pkg/anthropic"
	"github.com/foodguide/stallsync/pkg/geocode"
	"github.com/foodguide/stallsync/pkg/youtube"
)

// syncEnv holds the store, clients and orchestrator shared by the sync,
// serve and backfill commands.
type syncEnv struct {
	Store    store.Store
	Syncer   *syncer.Syncer
	Geocoder geocode.Client
	YouTube  youtube.Client // may be nil
}

// Close releases resources held by the environment.
func (e *syncEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initSyncEnv validates config for mode, opens and migrates the store, and
// builds the Syncer with every configured collaborator. Callers should
// defer env.Close().
func initSyncEnv(ctx context.Context, mode string) (*syncEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	timeout := time.Duration(cfg.Sync.TimeoutSecs) * time.Second
	snaps := fetcher.NewSnapshotFetcher(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: timeout,
	}))

	env := &syncEnv{
		Store:    st,
		Syncer:   syncer.New(cfg, st, snaps),
		Geocoder: initGeocoder(),
	}
	env.Syncer.SetGeocoder(env.Geocoder)

	if cfg.YouTube.APIKey != "" {
		env.YouTube = youtube.NewClient(cfg.YouTube.APIKey,
			youtube.WithBaseURL(cfg.YouTube.BaseURL),
			youtube.WithMaxPages(cfg.YouTube.MaxPages),
		)
		env.Syncer.SetYouTube(env.YouTube)
	} else {
		zap.L().Info("youtube api key not set, video checks disabled")
	}

	env.Syncer.SetClassifier(initClassifier())
	env.Syncer.SetAlerter(monitoring.NewAlerter(cfg.Alert))

	return env, nil
}

func initGeocoder() geocode.Client {
	opts := []geocode.Option{
		geocode.WithNominatimURL(cfg.Geocode.NominatimURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithInterval(time.Duration(cfg.Geocode.IntervalMs) * time.Millisecond),
		geocode.WithCacheTTL(time.Duration(cfg.Geocode.CacheTTLSecs) * time.Second),
	}
	if cfg.Geocode.GoogleKey != "" {
		opts = append(opts, geocode.WithGoogleAPIKey(cfg.Geocode.GoogleKey))
	}
	return geocode.NewClient(opts...)
}

// initClassifier picks the LLM-assisted hours classifier when an Anthropic
// key is configured.
func initClassifier() hours.Classifier {
	if cfg.Anthropic.Key == "" {
		return hours.Rules{}
	}
	return hours.NewAssisted(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
}
