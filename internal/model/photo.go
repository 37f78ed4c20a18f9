// Package model defines database models
package model

import "bitwise74/proffer/pkg/proffer"

// Upload fields of Photo
const (
	FieldPhoto    = "photo"
	FieldPhotoDir = "photo_dir"
)

type Photo struct {
	ID        uint        `gorm:"primaryKey;autoIncrement;index" json:"id"`
	Title     string      `json:"title"`
	Photo     string      `json:"photo"`     // File name inside PhotoDir
	PhotoDir  string      `json:"photo_dir"` // Seed of the directory all of the photo's files live in
	Size      int64       `json:"size"`
	Tags      StringSlice `json:"tags"`
	CreatedAt int64       `gorm:"not null" json:"created_at"`
	UpdatedAt int64       `json:"updated_at"`

	// Payloads waiting for the next save, keyed by field
	uploads map[string]*proffer.Payload
}

// Attach queues an upload payload for field. It's consumed by the next save.
func (p *Photo) Attach(field string, u *proffer.Payload) {
	p.Set(field, u)
}

// Pending returns the payload queued for field, if any
func (p *Photo) Pending(field string) *proffer.Payload {
	return p.uploads[field]
}

func (p *Photo) Get(field string) any {
	switch field {
	case FieldPhoto:
		if u, ok := p.uploads[field]; ok {
			return u
		}
		return p.Photo
	case FieldPhotoDir:
		return p.PhotoDir
	case "title":
		return p.Title
	}

	return nil
}

func (p *Photo) Set(field string, value any) {
	var s string

	switch v := value.(type) {
	case *proffer.Payload:
		p.queue(field, v)
		return
	case proffer.Payload:
		p.queue(field, &v)
		return
	case string:
		s = v
	case nil:
	default:
		// Anything else would end up as an empty column
		return
	}

	switch field {
	case FieldPhoto:
		delete(p.uploads, field)
		p.Photo = s
	case FieldPhotoDir:
		p.PhotoDir = s
	case "title":
		p.Title = s
	}
}

func (p *Photo) queue(field string, u *proffer.Payload) {
	if u == nil {
		delete(p.uploads, field)
		return
	}

	if p.uploads == nil {
		p.uploads = map[string]*proffer.Payload{}
	}
	p.uploads[field] = u
}

// Unset drops a queued payload. Persisted columns keep their value.
func (p *Photo) Unset(field string) {
	delete(p.uploads, field)
}
