package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mwinters/gfs-windcache/internal/cache/dedupe"
	"github.com/mwinters/gfs-windcache/internal/cache/redisstore"
	"github.com/mwinters/gfs-windcache/internal/cache/store"
	"github.com/mwinters/gfs-windcache/internal/core/config"
	"github.com/mwinters/gfs-windcache/internal/core/httpclient"
	"github.com/mwinters/gfs-windcache/internal/core/model"
	"github.com/mwinters/gfs-windcache/internal/core/observability"
	"github.com/mwinters/gfs-windcache/internal/core/router"
	"github.com/mwinters/gfs-windcache/internal/core/server"
	"github.com/mwinters/gfs-windcache/internal/grid"
	mylog "github.com/mwinters/gfs-windcache/internal/logger"
	"github.com/mwinters/gfs-windcache/internal/opendap"
	"github.com/mwinters/gfs-windcache/internal/scheduler"
	kafkaevents "github.com/mwinters/gfs-windcache/pkg/events/kafka"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

const dedupeCacheSize = 512

const refreshTopic = "wind-refresh"

func main() {
	cfg := config.FromEnv()

	zl := mylog.Build(mylog.Config{Level: cfg.LogLevel, Component: "windserver"}, os.Stdout)
	slogger := mylog.NewSlog(&zl)
	slogger.Info("starting windserver", "addr", cfg.Addr, "version", Version, "opendap_base_url", cfg.OpenDAPBaseURL)

	observability.Init(prometheus.DefaultRegisterer, true)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		zl.Fatal().Err(err).Msg("connect to redis")
	}
	defer func() { _ = rdb.Close() }()

	cacheStore := store.New(rdb, &zl, cfg.CacheTTL, cfg.MaxChunkBytes)

	dapClient := opendap.New(httpclient.NewOutbound(), cfg.OpenDAPBaseURL, &zl)

	var encoder grid.Encoder
	if cfg.DisablePNGEncoder {
		encoder = grid.NoOpEncoder{}
	} else {
		encoder = grid.NewPNGEncoder()
	}

	notifier, closeNotifier := buildNotifier(cfg, &zl)
	if closeNotifier != nil {
		defer closeNotifier()
	}

	sched := scheduler.New(dapClient, cacheStore, dedupe.New(dedupeCacheSize), encoder, notifier, &zl, scheduler.Params{
		Bounds:        model.Bounds{LatMin: -90, LatMax: 90, LonMin: -180, LonMax: 179.5},
		Source:        "gfs",
		Resolution:    0.5,
		Region:        "global",
		PrecipUnit:    "mm/3h",
		MaxHistory:    cfg.MaxHistory,
		BackfillSleep: cfg.BackfillSleep,
		TickEvery:     cfg.LatestTickEvery,
	})
	go sched.Run(ctx)

	handlers := router.NewHandlers(cacheStore, sched)

	if err := server.Run(ctx, cfg, slogger, rdb, handlers, sched); err != nil {
		zl.Fatal().Err(err).Msg("http server")
	}
	slogger.Info("windserver stopped")
}

// buildNotifier wires a Kafka producer when brokers are configured,
// otherwise the scheduler's no-op notifier. The returned func closes the
// producer on shutdown; it is nil when no producer was built.
func buildNotifier(cfg config.Config, zl *zerolog.Logger) (scheduler.Notifier, func()) {
	if cfg.KafkaBrokers == "" {
		return scheduler.NoopNotifier{}, nil
	}
	brokers := strings.Split(cfg.KafkaBrokers, ",")
	producer, err := kafkaevents.NewProducer(brokers, refreshTopic, zl)
	if err != nil {
		zl.Warn().Err(err).Msg("kafka producer unavailable, refresh events will not be published")
		return scheduler.NoopNotifier{}, nil
	}
	return producer, func() { _ = producer.Close() }
}
