package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"jobfeed/internal/config"
	"jobfeed/internal/database"
	"jobfeed/internal/dedup"
	"jobfeed/internal/source"

	"charm.land/log/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	path := os.Getenv("SCRAPER_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal("❌ Failed to load config", "err", err)
	}

	stores := map[string]dedup.DuplicateStore{}
	if cfg.DatabaseURL != "" {
		pg, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("❌ Failed to connect to database", "err", err)
		}
		defer pg.Close()
		stores[source.KindJobs] = dedup.NewHashStore(pg, dedup.WithReadOnly(true))
		stores[source.KindPosts] = dedup.NewIDStore(pg, dedup.WithReadOnly(true))
	} else {
		jobsDB, err := database.OpenSQLite(ctx, cfg.Jobs.DBPath)
		if err != nil {
			log.Fatal("❌ Failed to open jobs index", "err", err)
		}
		defer jobsDB.Close()
		postsDB, err := database.OpenSQLite(ctx, cfg.Posts.DBPath)
		if err != nil {
			log.Fatal("❌ Failed to open posts index", "err", err)
		}
		defer postsDB.Close()
		stores[source.KindJobs] = dedup.NewHashStore(jobsDB, dedup.WithReadOnly(true))
		stores[source.KindPosts] = dedup.NewIDStore(postsDB, dedup.WithReadOnly(true))
	}

	srv := newServer(cfg.ServerAddr, newRouter(stores))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("🌐 Server listening", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("❌ Server stopped", "err", err)
		os.Exit(1)
	}
	log.Info("👋 Server stopped")
}
