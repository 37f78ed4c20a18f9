// Package app wires the dependencies and the HTTP routes together
package app

import (
	"context"
	"fmt"
	"time"

	"bitwise74/proffer/config"
	"bitwise74/proffer/db"
	"bitwise74/proffer/internal"
	"bitwise74/proffer/internal/behavior"
	"bitwise74/proffer/internal/service"
	"bitwise74/proffer/internal/spool"
	"bitwise74/proffer/internal/thumbnail"
	"bitwise74/proffer/pkg/proffer"
	"bitwise74/proffer/pkg/storage"

	"github.com/chenyahui/gin-cache/persist"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const spoolSweepInterval = time.Hour

// Options override what NewDeps would build from the config
type Options struct {
	Fs        afero.Fs
	Dialector gorm.Dialector // Nil opens the database from the db config section
	Mirror    *storage.Mirror
}

// NewDeps builds everything from the loaded config
func NewDeps(ctx context.Context) (*internal.Deps, error) {
	o := Options{Fs: afero.NewOsFs()}

	if viper.GetString("storage.type") == "s3" {
		s3, err := storage.NewS3(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
		}

		o.Mirror = storage.NewMirror(s3.C, s3.Bucket, o.Fs)
	}

	return Wire(o)
}

// Wire builds the deps with the given options, taking the rest from the config
func Wire(o Options) (*internal.Deps, error) {
	d := &internal.Deps{
		Fs:        o.Fs,
		Root:      viper.GetString("upload.root"),
		Mirror:    o.Mirror,
		Behaviors: map[string]*proffer.Behavior{},
		Cache:     persist.NewMemoryStore(time.Minute),
		Done:      make(chan struct{}),
	}

	sp, err := spool.New(o.Fs, viper.GetString("upload.spool_dir"), viper.GetDuration("upload.spool_ttl"))
	if err != nil {
		return nil, err
	}
	d.Spool = sp

	plugin := behavior.New()

	for _, table := range config.Tables() {
		fields, err := config.Fields(table)
		if err != nil {
			return nil, err
		}

		b := newBehavior(d, table, fields)
		d.Behaviors[table] = b

		plugin.Attach(b, behavior.Rules(config.Rules(table)))
		zap.L().Debug("Attached upload behavior", zap.String("table", table), zap.Strings("fields", b.Fields()))
	}

	if o.Dialector != nil {
		d.DB, err = db.Open(o.Dialector, plugin)
	} else {
		d.DB, err = db.New(plugin)
	}
	if err != nil {
		sp.Close()
		return nil, err
	}

	// Spool files outlive the registry if the process restarts
	service.SpoolCleanup(spoolSweepInterval, viper.GetDuration("upload.spool_ttl"), sp, d.Done)

	return d, nil
}

func newBehavior(d *internal.Deps, table string, fields map[string]proffer.FieldConfig) *proffer.Behavior {
	transforms := []proffer.Transform{thumbnail.NewWriter(d.Fs)}
	if d.Mirror != nil {
		transforms = append(transforms, d.Mirror)
	}

	return proffer.New(table, fields,
		proffer.WithRoot(d.Root),
		proffer.WithFs(d.Fs),
		proffer.WithTransfers(d.Spool),
		proffer.WithRenderer(thumbnail.NewRenderer(d.Fs)),
		proffer.WithTransforms(transforms...),
		proffer.WithDirLocks(),
	)
}
