package photo

import (
	"net/http"
	"time"

	"bitwise74/proffer/internal"
	"bitwise74/proffer/internal/model"
	"bitwise74/proffer/pkg/proffer"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PhotoCreate stores a new photo. The file is moved into place by the upload
// behavior while the row is being created.
func PhotoCreate(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	p, size, code, err := formPayload(c, d, model.FieldPhoto)
	if err != nil {
		c.JSON(code, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	// No-op once the behavior moved the file
	defer d.Spool.Discard(p.TmpName)

	now := time.Now().Unix()
	photo := &model.Photo{
		Title:     c.PostForm("title"),
		Tags:      parseTags(c.PostForm("tags")),
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
	}
	photo.Attach(model.FieldPhoto, p)

	err = d.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(photo).Error; err != nil {
			return err
		}

		if p.Error != proffer.UploadErrOK {
			return nil
		}

		return addStats(tx, 1, size)
	})
	if err != nil {
		saveError(c, requestID, err)
		return
	}

	mirrorOriginal(c, d, photo)

	zap.L().Debug("Photo created", zap.String("requestID", requestID), zap.Uint("id", photo.ID))
	c.JSON(http.StatusCreated, newResponse(d, photo))
}

// mirrorOriginal copies the uploaded original to object storage if enabled.
// Failing to do so doesn't fail the request, the local copy is the source of truth.
func mirrorOriginal(c *gin.Context, d *internal.Deps, photo *model.Photo) {
	if d.Mirror == nil || photo.Photo == "" {
		return
	}

	err := d.Mirror.PutOriginal(c.Request.Context(), pathOf(d, photo))
	if err != nil {
		zap.L().Error("Failed to mirror original", zap.Uint("id", photo.ID), zap.Error(err))
	}
}
