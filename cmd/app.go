package cmd

import (
	"context"
	"errors"
	"fmt"

	"channel-publisher/core/config"
	"channel-publisher/core/database"
	"channel-publisher/core/index"
	"channel-publisher/core/ledger"
	"channel-publisher/core/logger"
	"channel-publisher/core/storage"
	"channel-publisher/core/telegram"
	"channel-publisher/feature/channelsync"
	"channel-publisher/feature/publish"
	"channel-publisher/feature/upload"

	"go.uber.org/zap"
)

// app is the wired application shared by the server and the CLI commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *index.Store
	feature *publish.Feature
	service *publish.Service
	ledger  *ledger.Ledger
	closers []func()
}

// bootstrap loads the configuration and wires every component. Optional
// parts (ledger, snapshots) are skipped with a warning when they cannot
// be set up.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logg)

	a := &app{cfg: cfg, logger: logg}
	a.closers = append(a.closers, func() { _ = logg.Sync() })

	if cfg.Telegram.Token == "" {
		a.close()
		return nil, errors.New("telegram.token is required (TELEGRAM_TOKEN)")
	}
	channel := telegram.NormalizeChannel(cfg.Telegram.Channel)
	if channel == "" {
		a.close()
		return nil, errors.New("telegram.channel is required (TELEGRAM_CHANNEL)")
	}
	logg = logg.With(zap.String("channel", channel))
	a.logger = logg

	a.store = index.Open(cfg.Index.Path, logg.Named("index"))

	bot := telegram.NewBotClient(cfg.Telegram, logg.Named("telegram"))
	preview := telegram.NewPreviewReader(cfg.Telegram, logg.Named("telegram"))

	syncer := channelsync.New(preview, a.store, channelsync.Options{
		Channel:     channel,
		Retry:       cfg.Sync.Retry,
		PagePause:   cfg.Sync.PagePause,
		MaxPages:    cfg.Sync.MaxPages,
		LockTimeout: cfg.Index.LockTimeout,
	}, logg.Named("sync"))

	orch := upload.New(bot, a.store, upload.OptionsFromConfig(channel, cfg.Upload, cfg.Index.LockTimeout), logg.Named("upload"))
	if led := a.openLedger(); led != nil {
		a.ledger = led
		orch.WithLedger(led)
	}

	deps := publish.Deps{
		Library:     cfg.Library,
		Store:       a.store,
		Syncer:      syncer,
		Uploader:    orch,
		Notifier:    publish.NewNotifier(bot, telegram.NormalizeChannel(cfg.Telegram.AdminChat), logg.Named("notify")),
		LockTimeout: cfg.Index.LockTimeout,
	}
	if snaps := a.openSnapshots(ctx); snaps != nil {
		deps.Snapshots = snaps
	}

	a.feature = publish.NewFeature(deps, logg)
	a.service = a.feature.Service()
	return a, nil
}

func (a *app) openLedger() *ledger.Ledger {
	if !a.cfg.Database.Enabled {
		return nil
	}
	db, err := database.Connect(a.cfg.Database)
	if err != nil {
		a.logger.Warn("Optional database connection failed, ledger disabled", zap.Error(err))
		return nil
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}
	led, err := ledger.Open(db, a.cfg.Database.AutoMigrate, a.logger.Named("ledger"))
	if err != nil {
		a.logger.Warn("Ledger unavailable", zap.Error(err))
		return nil
	}
	a.logger.Info("Published-titles ledger enabled", zap.String("driver", a.cfg.Database.Driver))
	return led
}

func (a *app) openSnapshots(ctx context.Context) *storage.Snapshotter {
	if !a.cfg.Storage.Enabled {
		return nil
	}
	client, err := storage.NewClient(a.cfg.Storage)
	if err != nil {
		a.logger.Warn("Storage client unavailable, index backup disabled", zap.Error(err))
		return nil
	}
	if err := storage.EnsureBucket(ctx, client, a.cfg.Storage.Bucket, a.cfg.Storage.Region); err != nil {
		a.logger.Warn("Snapshot bucket unavailable, index backup disabled", zap.Error(err))
		return nil
	}
	return storage.NewSnapshotter(client, a.cfg.Storage, a.logger.Named("snapshot"))
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
