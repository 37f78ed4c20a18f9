package proffer

import (
	"context"
	"fmt"
	"image"
)

// Dimensions of a single thumbnail
type Dimensions struct {
	Width  int  `mapstructure:"w" json:"w"`
	Height int  `mapstructure:"h" json:"h"`
	Crop   bool `mapstructure:"crop" json:"crop"`
}

// ThumbnailSize pairs a label with its dimensions. Sizes are kept in a slice so
// that they're processed in the order they were defined.
type ThumbnailSize struct {
	Label      string     `mapstructure:"label" json:"label"`
	Dimensions Dimensions `mapstructure:",squash" json:"dimensions"`
}

// BeforeThumbs is handed to the Renderer for every thumbnail size
type BeforeThumbs struct {
	Path       Path
	Dimensions Dimensions
	Method     string // Empty unless the field overrides it
}

// AfterThumbs is handed to every Transform once the renderer is done
type AfterThumbs struct {
	Image image.Image
	Path  Path
	Label string
}

// Renderer produces a thumbnail image. Returning a nil image means nothing was
// produced.
type Renderer interface {
	Render(ctx context.Context, in BeforeThumbs) (image.Image, error)
}

// Transform receives the working image after rendering. A non nil result
// replaces the working image for the transforms that follow.
type Transform interface {
	Transform(ctx context.Context, in AfterThumbs) (image.Image, error)
}

// RendererFunc adapts a function to a Renderer
type RendererFunc func(ctx context.Context, in BeforeThumbs) (image.Image, error)

func (f RendererFunc) Render(ctx context.Context, in BeforeThumbs) (image.Image, error) {
	return f(ctx, in)
}

// TransformFunc adapts a function to a Transform
type TransformFunc func(ctx context.Context, in AfterThumbs) (image.Image, error)

func (f TransformFunc) Transform(ctx context.Context, in AfterThumbs) (image.Image, error) {
	return f(ctx, in)
}

// makeThumbs runs the thumbnail pipeline for every size configured on field.
// Sizes are handled one at a time and each one finishes before the next starts.
func (b *Behavior) makeThumbs(ctx context.Context, field string, path Path) error {
	cfg := b.fields[field]

	for _, size := range cfg.ThumbnailSizes {
		var img image.Image

		if b.renderer != nil {
			out, err := b.renderer.Render(ctx, BeforeThumbs{
				Path:       path,
				Dimensions: size.Dimensions,
				Method:     cfg.ThumbnailMethod,
			})
			if err != nil {
				return fmt.Errorf("failed to render %s thumbnail, %w", size.Label, err)
			}

			if out != nil {
				img = out
			}
		}

		for _, t := range b.transforms {
			out, err := t.Transform(ctx, AfterThumbs{
				Image: img,
				Path:  path,
				Label: size.Label,
			})
			if err != nil {
				return fmt.Errorf("failed to process %s thumbnail, %w", size.Label, err)
			}

			if out != nil {
				img = out
			}
		}
	}

	return nil
}
