package photo

import (
	"errors"
	"net/http"

	"bitwise74/proffer/internal"
	"bitwise74/proffer/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PhotoDelete removes a photo and the directory holding its files
func PhotoDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var photo model.Photo

	err := d.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", c.Param("id")).First(&photo).Error; err != nil {
			return err
		}

		if err := tx.Delete(&photo).Error; err != nil {
			return err
		}

		if photo.Photo == "" {
			return nil
		}

		return addStats(tx, -1, -photo.Size)
	})
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

		zap.L().Error("Failed to delete photo", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	forget(d, c.Param("id"))

	if photo.PhotoDir != "" {
		dir := pathOf(d, &photo).Dir()
		if err := d.Fs.RemoveAll(dir); err != nil {
			zap.L().Error("Failed to remove photo directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	c.Status(http.StatusNoContent)
}
