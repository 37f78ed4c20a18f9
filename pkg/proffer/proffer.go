// Package proffer manages file uploads attached to database records. It is meant
// to run inside an ORM's save lifecycle: it clears absent optional uploads before
// validation and moves uploaded files into root/table/seed/name before the save,
// generating thumbnails for images.
package proffer

import (
	"context"
	"fmt"
	"image"
	"maps"
	"slices"
	"sync"

	// Decoders used by the image probe
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FieldConfig holds the settings of a single upload field
type FieldConfig struct {
	Dir             string          `mapstructure:"dir" json:"dir"`
	ThumbnailSizes  []ThumbnailSize `mapstructure:"thumbnail_sizes" json:"thumbnail_sizes"`
	ThumbnailMethod string          `mapstructure:"thumbnail_method" json:"thumbnail_method,omitempty"`
}

// Transfers knows which files came from a real HTTP upload and how to move them
type Transfers interface {
	IsUploaded(path string) bool
	Move(src, dst string) error
}

// Behavior is the upload intake handler for a single table
type Behavior struct {
	table      string
	root       string
	fields     map[string]FieldConfig
	order      []string
	fs         afero.Fs
	transfers  Transfers
	renderer   Renderer
	transforms []Transform
	seeder     func() string

	lockDirs bool
	locksMu  sync.Mutex
	locks    map[string]*dirLock
}

// dirLock is shared by the saves writing into one directory. It's dropped from
// the table once nobody holds or waits for it.
type dirLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(b *Behavior)

// WithRoot sets the directory every table directory is created in
func WithRoot(root string) Option {
	return func(b *Behavior) { b.root = root }
}

// WithFs sets the filesystem used for directories and the image probe
func WithFs(fs afero.Fs) Option {
	return func(b *Behavior) { b.fs = fs }
}

func WithTransfers(t Transfers) Option {
	return func(b *Behavior) { b.transfers = t }
}

func WithRenderer(r Renderer) Option {
	return func(b *Behavior) { b.renderer = r }
}

// WithTransforms appends steps run after the renderer, in the given order
func WithTransforms(t ...Transform) Option {
	return func(b *Behavior) { b.transforms = append(b.transforms, t...) }
}

// WithSeeder replaces the seed generator. Defaults to random UUIDs.
func WithSeeder(f func() string) Option {
	return func(b *Behavior) { b.seeder = f }
}

// WithDirLocks serializes saves that write into the same directory
func WithDirLocks() Option {
	return func(b *Behavior) { b.lockDirs = true }
}

// New creates a behavior for table. Fields maps upload field names to their
// settings and is processed in sorted field order.
func New(table string, fields map[string]FieldConfig, opts ...Option) *Behavior {
	b := &Behavior{
		table:  table,
		root:   "files",
		fields: fields,
		fs:     afero.NewOsFs(),
		seeder: uuid.NewString,
	}

	for _, o := range opts {
		o(b)
	}

	b.order = slices.Sorted(maps.Keys(fields))
	return b
}

// Table returns the table name the behavior was created for
func (b *Behavior) Table() string {
	return b.table
}

// Fields returns the configured upload field names in processing order
func (b *Behavior) Fields() []string {
	return b.order
}

// ThumbnailSizes returns the thumbnail sizes configured for field
func (b *Behavior) ThumbnailSizes(field string) []ThumbnailSize {
	return b.fields[field].ThumbnailSizes
}

// BeforeValidate removes upload fields that may be empty and didn't get a file,
// so that validation doesn't complain about them. It always returns true.
func (b *Behavior) BeforeValidate(rec Record, rules EmptyRules) bool {
	for _, field := range b.order {
		if rules == nil || !rules.IsEmptyAllowed(field) {
			continue
		}

		p, ok := payloadOf(rec.Get(field))
		if ok && p.Error == UploadErrNoFile {
			rec.Unset(field)
		}
	}

	return true
}

// HasUploads reports if any upload field of rec holds a payload that BeforeSave
// would move
func (b *Behavior) HasUploads(rec Record) bool {
	for _, field := range b.order {
		if p, ok := payloadOf(rec.Get(field)); ok && p.Error == UploadErrOK {
			return true
		}
	}

	return false
}

// BeforeSave moves every successfully uploaded file into its directory and
// updates the record. The first error stops processing, nothing already done
// is undone.
func (b *Behavior) BeforeSave(ctx context.Context, rec Record) error {
	for _, field := range b.order {
		p, ok := payloadOf(rec.Get(field))
		if !ok || p.Error != UploadErrOK {
			continue
		}

		if err := b.intake(ctx, rec, field, p); err != nil {
			return err
		}
	}

	return nil
}

func (b *Behavior) intake(ctx context.Context, rec Record, field string, p *Payload) error {
	if b.transfers == nil || !b.transfers.IsUploaded(p.TmpName) {
		zap.L().Warn("Rejected upload that didn't come from an HTTP transfer",
			zap.String("table", b.table),
			zap.String("field", field),
			zap.String("tmp_name", p.TmpName))
		return ErrNotUploaded
	}

	path, err := b.BuildPath(rec, field, p)
	if err != nil {
		return &MoveError{Src: p.TmpName, Dst: path.Full(), Err: err}
	}

	if b.lockDirs {
		unlock := b.lockDir(path.Dir())
		defer unlock()
	}

	if err := b.transfers.Move(p.TmpName, path.Full()); err != nil {
		return &MoveError{Src: p.TmpName, Dst: path.Full(), Err: err}
	}

	rec.Set(field, path.Name)
	rec.Set(b.fields[field].Dir, path.Seed)

	zap.L().Debug("Upload moved into place",
		zap.String("table", b.table),
		zap.String("field", field),
		zap.String("path", path.Full()))

	// Don't generate thumbnails for non-images
	if !b.isImage(path.Full()) {
		return nil
	}

	if err := b.makeThumbs(ctx, field, path); err != nil {
		return fmt.Errorf("failed to generate thumbnails for %s, %w", field, err)
	}

	return nil
}

// isImage probes the file header. Files that can't be decoded aren't images.
func (b *Behavior) isImage(p string) bool {
	f, err := b.fs.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()

	_, _, err = image.DecodeConfig(f)
	return err == nil
}

// lockDir locks dir and returns the matching unlock
func (b *Behavior) lockDir(dir string) func() {
	b.locksMu.Lock()
	if b.locks == nil {
		b.locks = map[string]*dirLock{}
	}

	l, ok := b.locks[dir]
	if !ok {
		l = &dirLock{}
		b.locks[dir] = l
	}
	l.refs++
	b.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		b.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, dir)
		}
		b.locksMu.Unlock()
	}
}
