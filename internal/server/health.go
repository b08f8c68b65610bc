package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xorcism-go/internal/config"
	"github.com/xorcism-go/internal/errors"
	"github.com/xorcism-go/internal/handler"
	"github.com/xorcism-go/internal/storage"
	"github.com/xorcism-go/internal/xorcism"
)

var startTime = time.Now()

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	Uptime       string   `json:"uptime"`
	GoVersion    string   `json:"go_version"`
	NumGoroutine int      `json:"num_goroutine"`
	MemAlloc     uint64   `json:"mem_alloc_mb"`
	KeySources   []string `json:"key_sources"`
}

// HealthHandler returns server health status
func HealthHandler(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sources := xorcism.ListSources()
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "ok",
		Version:      config.Version,
		Uptime:       time.Since(startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAlloc:     m.Alloc / 1024 / 1024, // MB
		KeySources:   names,
	})
}

// ReadyHandler reports whether the key store can serve requests
func ReadyHandler(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Ping(); err != nil {
			handler.RespondError(c.Writer, errors.NewStorageError("Store not ready", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
