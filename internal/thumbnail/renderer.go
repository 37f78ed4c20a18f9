// Package thumbnail renders and writes image thumbnails for the proffer pipeline
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"bitwise74/proffer/pkg/proffer"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrNoDimensions  = errors.New("thumbnail needs a width or a height")
	ErrUnknownMethod = errors.New("unknown thumbnail method")
)

// DefaultMethod is used when a field doesn't set a thumbnail method
const DefaultMethod = "lanczos"

var filters = map[string]imaging.ResampleFilter{
	"lanczos":    imaging.Lanczos,
	"catmullrom": imaging.CatmullRom,
	"mitchell":   imaging.MitchellNetravali,
	"linear":     imaging.Linear,
	"box":        imaging.Box,
	"nearest":    imaging.NearestNeighbor,
}

// Filter returns the resampling filter for a thumbnail method name
func Filter(method string) (imaging.ResampleFilter, error) {
	if method == "" {
		method = DefaultMethod
	}

	f, ok := filters[strings.ToLower(method)]
	if !ok {
		return imaging.ResampleFilter{}, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	return f, nil
}

// Renderer resizes the original upload. It doesn't write anything, see Writer.
type Renderer struct {
	fs afero.Fs
}

func NewRenderer(fs afero.Fs) *Renderer {
	return &Renderer{fs: fs}
}

func (r *Renderer) Render(ctx context.Context, in proffer.BeforeThumbs) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := in.Dimensions
	if d.Width <= 0 && d.Height <= 0 {
		return nil, ErrNoDimensions
	}

	filter, err := Filter(in.Method)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	f, err := r.fs.Open(in.Path.Full())
	if err != nil {
		return nil, fmt.Errorf("failed to open original, %w", err)
	}
	defer f.Close()

	src, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode original, %w", err)
	}

	var out image.Image

	switch {
	case d.Crop && d.Width > 0 && d.Height > 0:
		out = imaging.Fill(src, d.Width, d.Height, imaging.Center, filter)
	case d.Width > 0 && d.Height > 0:
		out = imaging.Fit(src, d.Width, d.Height, filter)
	default:
		// One side is zero, keep the aspect ratio
		out = imaging.Resize(src, d.Width, d.Height, filter)
	}

	zap.L().Debug("Rendered thumbnail",
		zap.String("path", in.Path.Full()),
		zap.Int("width", out.Bounds().Dx()),
		zap.Int("height", out.Bounds().Dy()),
		zap.Duration("took", time.Since(now)))

	return out, nil
}

// ThumbPath returns where the thumbnail labeled label is stored
func ThumbPath(p proffer.Path, label string) string {
	return filepath.Join(p.Dir(), ThumbName(p.Name, label))
}

// ThumbName returns the file name of a thumbnail
func ThumbName(name, label string) string {
	return label + "_" + name
}
