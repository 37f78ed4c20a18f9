package photo

import (
	"errors"
	"net/http"
	"time"

	"bitwise74/proffer/internal"
	"bitwise74/proffer/internal/model"
	"bitwise74/proffer/pkg/proffer"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PhotoUpdate changes the title or tags of a photo and replaces its file if a
// new one is sent. A new file lands in the same directory as the old one.
func PhotoUpdate(c *gin.Context, d *internal.Deps) {
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

	p, size, code, err := formPayload(c, d, model.FieldPhoto)
	if err != nil {
		c.JSON(code, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}
	defer d.Spool.Discard(p.TmpName)

	if title, ok := c.GetPostForm("title"); ok {
		photo.Title = title
	}

	if tags, ok := c.GetPostForm("tags"); ok {
		photo.Tags = parseTags(tags)
	}

	if p.Error == proffer.UploadErrOK {
		photo.Size = size
	}

	photo.UpdatedAt = time.Now().Unix()

	// Keep the current file when no new one was sent
	if p.Error != proffer.UploadErrNoFile {
		photo.Attach(model.FieldPhoto, p)
	}

	err = d.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&photo).Error; err != nil {
			return err
		}

		if p.Error != proffer.UploadErrOK {
			return nil
		}

		// The old file stays on disk, so it keeps counting
		return addStats(tx, 1, size)
	})
	if err != nil {
		saveError(c, requestID, err)
		return
	}

	forget(d, c.Param("id"))

	if p.Error == proffer.UploadErrOK {
		mirrorOriginal(c, d, &photo)
	}

	c.JSON(http.StatusOK, newResponse(d, &photo))
}
