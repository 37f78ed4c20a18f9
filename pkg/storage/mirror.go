package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"path"
	"path/filepath"

	"bitwise74/proffer/internal/thumbnail"
	"bitwise74/proffer/pkg/proffer"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const multipartLimit = 12 << 20

// Mirror copies files written under the upload root to a bucket, keyed by
// table/seed/file.
type Mirror struct {
	api    manager.UploadAPIClient
	bucket *string
	fs     afero.Fs
}

func NewMirror(api manager.UploadAPIClient, bucket *string, fs afero.Fs) *Mirror {
	return &Mirror{
		api:    api,
		bucket: bucket,
		fs:     fs,
	}
}

// Key returns the object key for a file stored in the directory of p
func Key(p proffer.Path, file string) string {
	return path.Join(p.Table, p.Seed, file)
}

// Transform uploads the thumbnail the Writer stored for in.Label. It must come
// after the Writer in the pipeline.
func (m *Mirror) Transform(ctx context.Context, in proffer.AfterThumbs) (image.Image, error) {
	if in.Image == nil {
		return nil, nil
	}

	name := thumbnail.ThumbName(in.Path.Name, in.Label)
	if err := m.Put(ctx, Key(in.Path, name), filepath.Join(in.Path.Dir(), name)); err != nil {
		return nil, err
	}

	return nil, nil
}

// PutOriginal uploads the file the behavior moved into place
func (m *Mirror) PutOriginal(ctx context.Context, p proffer.Path) error {
	return m.Put(ctx, Key(p, p.Name), p.Full())
}

// Put uploads a local file. Big files go through the multipart uploader.
func (m *Mirror) Put(ctx context.Context, key, local string) error {
	f, err := m.fs.Open(local)
	if err != nil {
		return fmt.Errorf("failed to open file for mirroring, %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file for mirroring, %w", err)
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return fmt.Errorf("failed to detect content type, %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file, %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        m.bucket,
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(mime.String()),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	}

	if stat.Size() > multipartLimit {
		u := manager.NewUploader(m.api, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})

		_, err = u.Upload(ctx, input)
	} else {
		_, err = m.api.PutObject(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3, %w", key, err)
	}

	zap.L().Debug("Mirrored file", zap.String("key", key), zap.Int64("size", stat.Size()))
	return nil
}
