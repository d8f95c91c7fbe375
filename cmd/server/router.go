package main

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"jobfeed/internal/dedup"

	"charm.land/log/v2"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type storeStats struct {
	Tracked int64      `json:"tracked"`
	Oldest  *time.Time `json:"oldest_first_seen,omitempty"`
	Newest  *time.Time `json:"newest_last_seen,omitempty"`
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newRouter serves health and store statistics. The stores are only read.
func newRouter(stores map[string]dedup.DuplicateStore) *gin.Engine {
	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		names := make([]string, 0, len(stores))
		for name := range stores {
			names = append(names, name)
		}
		sort.Strings(names)
		c.JSON(http.StatusOK, gin.H{
			"message": "Scraper status API is running!",
			"status":  "healthy",
			"sources": names,
		})
	})

	r.GET("/stats", func(c *gin.Context) {
		var mu sync.Mutex
		out := make(map[string]storeStats, len(stores))
		g, ctx := errgroup.WithContext(c.Request.Context())
		for name, store := range stores {
			g.Go(func() error {
				st, err := store.Stats(ctx)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				mu.Lock()
				out[name] = toStoreStats(st.Total, st.Oldest, st.Newest)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			log.Error("❌ Failed to read store stats", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/stats/:source", func(c *gin.Context) {
		name := c.Param("source")
		store, ok := stores[name]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "unknown source " + name})
			return
		}
		st, err := store.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toStoreStats(st.Total, st.Oldest, st.Newest))
	})

	return r
}

func toStoreStats(total int64, oldest, newest time.Time) storeStats {
	s := storeStats{Tracked: total}
	if !oldest.IsZero() {
		s.Oldest = &oldest
	}
	if !newest.IsZero() {
		s.Newest = &newest
	}
	return s
}
