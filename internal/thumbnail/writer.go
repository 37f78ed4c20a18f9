package thumbnail

import (
	"context"
	"fmt"
	"image"

	"bitwise74/proffer/pkg/proffer"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const jpegQuality = 90

// Writer saves the working image next to the original as label_name
type Writer struct {
	fs afero.Fs
}

func NewWriter(fs afero.Fs) *Writer {
	return &Writer{fs: fs}
}

// Transform writes in.Image and hands it back untouched. Nothing is written if
// the renderer didn't produce an image.
func (w *Writer) Transform(ctx context.Context, in proffer.AfterThumbs) (image.Image, error) {
	if in.Image == nil {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := ThumbPath(in.Path, in.Label)

	format, err := imaging.FormatFromFilename(in.Path.Name)
	if err != nil {
		// Anything the encoder doesn't know about (webp for example) gets stored as png
		format = imaging.PNG
	}

	f, err := w.fs.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail file, %w", err)
	}

	if err := imaging.Encode(f, in.Image, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		f.Close()
		w.fs.Remove(dst)
		return nil, fmt.Errorf("failed to encode thumbnail, %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close thumbnail file, %w", err)
	}

	zap.L().Debug("Wrote thumbnail", zap.String("path", dst), zap.String("label", in.Label))

	return in.Image, nil
}
