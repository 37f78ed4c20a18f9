package app

import (
	"net/http"
	"strings"
	"time"

	"bitwise74/proffer/app/photo"
	"bitwise74/proffer/app/root"
	"bitwise74/proffer/config"
	"bitwise74/proffer/internal"
	"bitwise74/proffer/pkg/middleware"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Room for the non file form fields on top of the upload itself
const formOverhead = 1 << 20

func NewRouter(d *internal.Deps) *gin.Engine {
	router := gin.New()

	if o := origins(); len(o) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     o,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		middleware.NoSniff(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == http.MethodHead
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	router.MaxMultipartMemory = 5 << 20

	rateLimit := viper.GetInt("security.rate_limit")
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
		CleanupInterval:   time.Minute,
	})
	bodyLimit := middleware.BodySizeLimiter(config.MaxUploadSize() + formOverhead)

	m := router.Group("/api", rateLimiter)
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)
	}

	p := m.Group("/photos")
	{
		// POST /api/photos		-> Uploads a new photo
		p.POST("", bodyLimit, func(c *gin.Context) { photo.PhotoCreate(c, d) })

		// GET /api/photos/:id		-> Returns a photo with its file and thumbnail URLs
		p.GET("/:id", photo.Cached(d, 5*time.Second), func(c *gin.Context) { photo.PhotoFetch(c, d) })

		// PATCH /api/photos/:id	-> Updates a photo, optionally replacing its file
		p.PATCH("/:id", bodyLimit, func(c *gin.Context) { photo.PhotoUpdate(c, d) })

		// DELETE /api/photos/:id	-> Deletes a photo and its files
		p.DELETE("/:id", func(c *gin.Context) { photo.PhotoDelete(c, d) })
	}

	// GET /files/*			-> Serves uploaded files and thumbnails
	router.StaticFS("/files", afero.NewHttpFs(d.Fs).Dir(d.Root))

	// GET /metrics			-> Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// origins accepts both a list and a single comma separated string, the latter
// being what comes out of the HOST_CORS env variable
func origins() []string {
	var out []string
	for _, o := range viper.GetStringSlice("host.cors") {
		for _, s := range strings.Split(o, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}

	return out
}
