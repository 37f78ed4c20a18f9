package photo

import (
	"errors"
	"net/http"
	"path"
	"path/filepath"

	"bitwise74/proffer/internal"
	"bitwise74/proffer/internal/model"
	"bitwise74/proffer/internal/thumbnail"
	"bitwise74/proffer/pkg/proffer"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type response struct {
	*model.Photo
	URL        string            `json:"url,omitempty"`
	Thumbnails map[string]string `json:"thumbnails,omitempty"`
}

// pathOf rebuilds the path the behavior stored the photo at
func pathOf(d *internal.Deps, photo *model.Photo) proffer.Path {
	return proffer.Path{
		Root:  d.Root,
		Table: table,
		Seed:  photo.PhotoDir,
		Name:  photo.Photo,
	}
}

func newResponse(d *internal.Deps, photo *model.Photo) response {
	r := response{Photo: photo}
	if photo.Photo == "" {
		return r
	}

	base := path.Join("/files", table, photo.PhotoDir)
	r.URL = path.Join(base, photo.Photo)

	b, ok := d.Behaviors[table]
	if !ok {
		return r
	}

	// Non images don't have thumbnails on disk
	r.Thumbnails = map[string]string{}
	for _, s := range b.ThumbnailSizes(model.FieldPhoto) {
		name := thumbnail.ThumbName(photo.Photo, s.Label)

		if ok, _ := afero.Exists(d.Fs, filepath.Join(pathOf(d, photo).Dir(), name)); !ok {
			continue
		}

		r.Thumbnails[s.Label] = path.Join(base, name)
	}

	return r
}

func PhotoFetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var photo model.Photo

	err := d.DB.
		WithContext(c.Request.Context()).
		Where("id = ?", c.Param("id")).
		First(&photo).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Photo not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch photo", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, newResponse(d, &photo))
}
