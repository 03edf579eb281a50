package router

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/photo-blur/internal/api/handlers/blur"
)

// Setup registers the API routes. metrics may be nil.
func Setup(h *blur.Handler, metrics http.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/image", h.Upload)     // pick an image
	api.GET("/image", h.Current)     // image currently shown
	api.POST("/capture", h.Capture)  // take a picture
	api.POST("/blur", h.Blur)        // enqueue the blur task
	api.GET("/work", h.Works)        // works by tag
	api.GET("/work/:id", h.Work)     // single work lifecycle
	api.GET("/cache/:name", h.Cache) // "View Image" target

	if metrics != nil {
		r.GET("/metrics", func(c *ginext.Context) {
			metrics.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}
