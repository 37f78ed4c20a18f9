// Package photo contains the endpoints of the photos table
package photo

import (
	"errors"
	"net/http"
	"strings"

	"bitwise74/proffer/config"
	"bitwise74/proffer/internal"
	"bitwise74/proffer/internal/behavior"
	"bitwise74/proffer/pkg/proffer"
	"bitwise74/proffer/pkg/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// formPayload reads the file sent as field and spools it. A request without the
// file gets a payload flagged with UploadErrNoFile so the behavior can decide
// what to do with it.
func formPayload(c *gin.Context, d *internal.Deps, field string) (*proffer.Payload, int64, int, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return &proffer.Payload{Error: proffer.UploadErrNoFile}, 0, 0, nil
		}

		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, 0, http.StatusRequestEntityTooLarge, validators.ErrFileTooLarge
		}

		return nil, 0, http.StatusBadRequest, errors.New("invalid multipart form")
	}

	code, f, err := validators.FileValidator(fh, validators.FileOpts{
		MaxSize:      config.MaxUploadSize(),
		AllowedTypes: viper.GetStringSlice("upload.allowed_types"),
	})
	if err != nil {
		if code == http.StatusInternalServerError {
			zap.L().Error("Failed to validate file", zap.Error(err))

			// That's to set the error into a general one for the users
			err = errors.New("internal server error")
		}

		return nil, 0, code, err
	}
	defer f.Close()

	tmp, err := d.Spool.Spool(fh.Filename, f)
	if err != nil {
		zap.L().Error("Failed to spool uploaded file", zap.Error(err))
		return nil, 0, http.StatusInternalServerError, errors.New("internal server error")
	}

	return &proffer.Payload{
		Name:    fh.Filename,
		TmpName: tmp,
		Error:   proffer.UploadErrOK,
	}, fh.Size, 0, nil
}

// saveError responds to an error returned while saving a photo
func saveError(c *gin.Context, requestID string, err error) {
	var verr *behavior.ValidationError
	var merr *proffer.MoveError

	switch {
	case proffer.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "File must be uploaded using HTTP post",
			"requestID": requestID,
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "Validation failed",
			"fields":    verr.Fields,
			"requestID": requestID,
		})
	case errors.As(err, &merr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to move upload into place", zap.String("requestID", requestID), zap.Error(err))
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to save photo", zap.String("requestID", requestID), zap.Error(err))
	}
}

func parseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return tags
}
