package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/ai"
	"github.com/junh-oh/landrush/internal/archive"
	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/config"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/ledger"
	"github.com/junh-oh/landrush/internal/prompt"
	"github.com/junh-oh/landrush/internal/server"
	"github.com/junh-oh/landrush/internal/store"
	"github.com/junh-oh/landrush/internal/turn"
)

func main() {
	cfg := config.Load()
	log := cfg.Logger()

	pacing, err := config.LoadPacing(cfg.PacingFile)
	if err != nil {
		log.WithError(err).Warn("pacing file unusable, using defaults")
	}

	catalog, err := board.Load(log)
	if err != nil {
		log.WithError(err).Fatal("loading boards")
	}
	if cfg.BoardDir != "" {
		if err := catalog.LoadDir(cfg.BoardDir); err != nil {
			log.WithError(err).WithField("dir", cfg.BoardDir).Fatal("loading board directory")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st       store.Store
		bus      dispatch.Bus
		redisBus *dispatch.RedisBus
	)
	router := dispatch.NewRouter(log)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("connecting to redis")
		}
		st = store.NewRedis(rdb)
		redisBus = dispatch.NewRedisBus(rdb, router, log)
		bus = redisBus
		log.WithField("addr", cfg.RedisAddr).Info("using redis store and bus")
	} else {
		st = store.NewMemory()
		bus = dispatch.NewMemoryBus(router, log)
		log.Info("no REDIS_ADDR set, using in-memory store and bus")
	}

	var arch ledger.Archiver
	if cfg.DatabaseURL != "" {
		a, err := archive.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.WithError(err).Fatal("connecting to archive database")
		}
		defer a.Close()
		arch = a
	} else {
		log.Info("no DATABASE_URL set, finished matches are not archived")
	}

	hub := server.NewHub(log)
	env := &prompt.Env{Store: st, Bus: bus, Notifier: hub, Catalog: catalog}
	broker := prompt.New(env, ai.NewRandom(time.Now().UnixNano()), log)
	broker.Register(router)

	ledgerEngine := ledger.New(st, bus, hub, broker, arch, pacing.MatchTTL(), log)
	ledgerEngine.Register(router)

	turnEngine := turn.New(st, bus, hub, broker, catalog, turn.Options{
		RollFrames:   pacing.RollFrames,
		RollDuration: pacing.RollDuration(),
		RollAccel:    pacing.RollAccel,
		StepDelay:    pacing.StepDelay(),
	}, nil, time.Now().UnixNano(), log)
	turnEngine.Register(router)

	if redisBus != nil {
		go redisBus.Run(ctx)
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(st, bus, broker, catalog, hub, cfg.JWTSecret, log).Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{"addr": cfg.ListenAddr, "boards": catalog.Names()}).Info("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}
}
