package proffer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DirMode is used for every directory the behavior creates
const DirMode = 0o777

// Path is the destination of an upload, split into its parts
type Path struct {
	Root  string `json:"root"`
	Table string `json:"table"`
	Seed  string `json:"seed"`
	Name  string `json:"name"`
}

// Dir returns root/table/seed
func (p Path) Dir() string {
	return filepath.Join(p.Root, p.Table, p.Seed)
}

// Full returns root/table/seed/name
func (p Path) Full() string {
	return filepath.Join(p.Dir(), p.Name)
}

// BuildPath works out where the upload stored in field should go and makes sure
// the directory for it exists.
func (b *Behavior) BuildPath(rec Record, field string, p *Payload) (Path, error) {
	path := Path{
		Root:  b.root,
		Table: strings.ToLower(b.table),
		Seed:  stringOf(rec.Get(b.fields[field].Dir)),
		Name:  cleanName(p.Name),
	}

	if path.Seed == "" {
		path.Seed = b.seeder()
	}

	// MkdirAll returns nil for directories that are already there
	if err := b.fs.MkdirAll(path.Dir(), DirMode); err != nil {
		return path, fmt.Errorf("failed to create upload directory, %w", err)
	}

	return path, nil
}

// cleanName strips any directory parts a client may have put into the name
func cleanName(name string) string {
	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if name == "/" || name == "." {
		return ""
	}

	return name
}
