package server

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// streamingPrefixes are never gzipped. Munged bytes don't compress and
// gzip would buffer chunks the client expects to see as they are produced.
var streamingPrefixes = []string{
	"/api/munge/",
	"/api/sessions/",
	"/metrics",
}

// GzipMiddleware compresses JSON responses
func GzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedPaths(streamingPrefixes))
}
