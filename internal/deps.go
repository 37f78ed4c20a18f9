package internal

import (
	"bitwise74/proffer/internal/spool"
	"bitwise74/proffer/pkg/proffer"
	"bitwise74/proffer/pkg/storage"

	"github.com/chenyahui/gin-cache/persist"
	"github.com/spf13/afero"
	"gorm.io/gorm"
)

type Deps struct {
	DB        *gorm.DB
	Fs        afero.Fs
	Root      string // Upload root every table directory lives in
	Spool     *spool.Spooler
	Mirror    *storage.Mirror // Nil unless storage.type is s3
	Behaviors map[string]*proffer.Behavior
	Cache     persist.CacheStore // Cached photo responses
	Done      chan struct{}
}

// Close stops background work started for the deps
func (d *Deps) Close() error {
	select {
	case <-d.Done:
	default:
		close(d.Done)
	}

	return d.Spool.Close()
}
