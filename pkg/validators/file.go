// Package validators checks user input before it reaches the upload behavior
package validators

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileNameTooLong     = errors.New("file name is too long")
	ErrFileNameInvalid     = errors.New("file name is invalid")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
)

// Leaves room for the label_ prefix of thumbnails
const maxFileNameSize = 200

// FileOpts are the limits a file is checked against
type FileOpts struct {
	MaxSize      int64
	AllowedTypes []string // Exact types or wildcards like image/*, empty allows anything but scriptable types
}

// FileValidator checks the header and the content of an uploaded file. On
// success the opened file is returned rewound to its start, the caller closes it.
// The returned status code is meant for the HTTP response.
func FileValidator(fh *multipart.FileHeader, o FileOpts) (int, multipart.File, error) {
	name := strings.TrimSpace(fh.Filename)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return http.StatusBadRequest, nil, ErrFileNameInvalid
	}

	if len(name) > maxFileNameSize {
		return http.StatusBadRequest, nil, ErrFileNameTooLong
	}

	if o.MaxSize > 0 && fh.Size > o.MaxSize {
		return http.StatusRequestEntityTooLarge, nil, ErrFileTooLarge
	}

	// Headers are easy to spoof so check the actual content
	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, err
	}

	if !TypeAllowed(mime.String(), o.AllowedTypes) {
		f.Close()
		return http.StatusUnsupportedMediaType, nil, ErrFileTypeUnsupported
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, err
	}

	return 0, f, nil
}

// Types that can carry scripts. Wildcards and an empty list never match them,
// they have to be listed exactly.
var scriptable = map[string]bool{
	"image/svg+xml": true,
}

// TypeAllowed reports if the mime type matches one of the allowed types
func TypeAllowed(mime string, allowed []string) bool {
	// Drop parameters like charset
	mime, _, _ = strings.Cut(mime, ";")

	if len(allowed) == 0 {
		return !scriptable[strings.ToLower(mime)]
	}

	for _, a := range allowed {
		a = strings.TrimSpace(a)

		if prefix, ok := strings.CutSuffix(a, "/*"); ok {
			if strings.HasPrefix(mime, prefix+"/") && !scriptable[strings.ToLower(mime)] {
				return true
			}
			continue
		}

		if strings.EqualFold(a, mime) {
			return true
		}
	}

	return false
}
