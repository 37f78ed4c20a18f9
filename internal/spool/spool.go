// Package spool stores files received over HTTP until they're moved into place.
// Every spooled file is registered so that only paths produced by a real
// transfer can be moved later on.
package spool

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var ErrNotSpooled = errors.New("file was not spooled")

type Spooler struct {
	fs  afero.Fs
	dir string
	reg *ttlcache.Cache
}

// New creates a spooler writing into dir. Files that aren't moved within ttl
// are deleted.
func New(fs afero.Fs, dir string, ttl time.Duration) (*Spooler, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve spool directory, %w", err)
	}

	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create spool directory, %w", err)
	}

	reg := ttlcache.NewCache()
	reg.SkipTTLExtensionOnHit(true)

	if err := reg.SetTTL(ttl); err != nil {
		return nil, fmt.Errorf("failed to set spool ttl, %w", err)
	}

	s := &Spooler{
		fs:  fs,
		dir: dir,
		reg: reg,
	}

	reg.SetExpirationReasonCallback(func(key string, reason ttlcache.EvictionReason, _ any) {
		if reason != ttlcache.Expired {
			return
		}

		if err := s.fs.Remove(key); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			zap.L().Error("Failed to remove expired spool file", zap.String("path", key), zap.Error(err))
			return
		}

		zap.L().Debug("Removed expired spool file", zap.String("path", key))
	})

	return s, nil
}

// Dir returns the absolute spool directory
func (s *Spooler) Dir() string {
	return s.dir
}

// Spool copies r into a new file in the spool directory and registers it.
// The extension of name is kept so that tools sniffing by extension still work.
func (s *Spooler) Spool(name string, r io.Reader) (string, error) {
	f, err := afero.TempFile(s.fs, s.dir, "upload-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("failed to create spool file, %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		s.fs.Remove(f.Name())
		return "", fmt.Errorf("failed to write spool file, %w", err)
	}

	p := filepath.Clean(f.Name())
	if err := s.reg.Set(p, name); err != nil {
		s.fs.Remove(p)
		return "", fmt.Errorf("failed to register spool file, %w", err)
	}

	return p, nil
}

// IsUploaded reports if p was produced by Spool and hasn't been moved or expired
func (s *Spooler) IsUploaded(p string) bool {
	if p == "" {
		return false
	}

	p = filepath.Clean(p)
	if !strings.HasPrefix(p, s.dir+string(filepath.Separator)) {
		return false
	}

	_, err := s.reg.Get(p)
	return err == nil
}

// Move moves a spooled file to dst. Renames across filesystems fall back to a
// copy.
func (s *Spooler) Move(src, dst string) error {
	if !s.IsUploaded(src) {
		return ErrNotSpooled
	}

	src = filepath.Clean(src)

	if err := s.fs.Rename(src, dst); err != nil {
		zap.L().Debug("Rename failed, copying instead", zap.String("src", src), zap.String("dst", dst), zap.Error(err))

		if err := s.copy(src, dst); err != nil {
			return err
		}

		s.fs.Remove(src)
	}

	s.reg.Remove(src)
	return nil
}

// Discard removes a spooled file that won't be moved
func (s *Spooler) Discard(p string) {
	if !s.IsUploaded(p) {
		return
	}

	p = filepath.Clean(p)
	s.reg.Remove(p)

	if err := s.fs.Remove(p); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		zap.L().Warn("Failed to discard spool file", zap.String("path", p), zap.Error(err))
	}
}

func (s *Spooler) copy(src, dst string) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open spool file, %w", err)
	}
	defer in.Close()

	out, err := s.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file, %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		s.fs.Remove(dst)
		return fmt.Errorf("failed to copy spool file, %w", err)
	}

	return out.Close()
}

// Sweep deletes files older than maxAge that aren't registered. Those are left
// behind when the process stops before the registry expires them.
func (s *Spooler) Sweep(maxAge time.Duration) (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read spool directory, %w", err)
	}

	var removed int
	for _, e := range entries {
		if e.IsDir() || time.Since(e.ModTime()) < maxAge {
			continue
		}

		p := filepath.Join(s.dir, e.Name())
		if s.IsUploaded(p) {
			continue
		}

		if err := s.fs.Remove(p); err != nil {
			zap.L().Warn("Failed to remove stale spool file", zap.String("path", p), zap.Error(err))
			continue
		}

		removed++
	}

	return removed, nil
}

// Close stops the expiry loop. Files still spooled are left on disk.
func (s *Spooler) Close() error {
	return s.reg.Close()
}
