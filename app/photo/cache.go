package photo

import (
	"time"

	"bitwise74/proffer/internal"

	cache "github.com/chenyahui/gin-cache"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func cacheKey(id string) string {
	return "photo:" + id
}

// Cached caches fetched photos for ttl. Updates and deletes drop the entry.
func Cached(d *internal.Deps, ttl time.Duration) gin.HandlerFunc {
	return cache.Cache(d.Cache, ttl, cache.WithCacheStrategyByRequest(func(c *gin.Context) (bool, cache.Strategy) {
		return true, cache.Strategy{CacheKey: cacheKey(c.Param("id"))}
	}))
}

// forget drops the cached response of the photo requested with id
func forget(d *internal.Deps, id string) {
	// Missing keys are reported as errors too
	if err := d.Cache.Delete(cacheKey(id)); err != nil {
		zap.L().Debug("Cached photo not dropped", zap.String("id", id), zap.Error(err))
	}
}
