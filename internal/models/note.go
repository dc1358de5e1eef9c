// Package models defines the vault-side domain types for cardnav.
package models

import (
	"path"
	"time"
)

// FolderOf returns the canonical folder of a note path: slash-separated,
// leading slash, "/" for vault-root notes. "projects/p.md" → "/projects".
func FolderOf(notePath string) string {
	dir := path.Dir(notePath)
	if dir == "." || dir == "/" {
		return "/"
	}
	if dir[0] != '/' {
		dir = "/" + dir
	}
	return dir
}

// NoteMetadata is a lightweight representation returned by vault list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Card is the browsable representation of a note, as shown in the card grid.
// Its visual treatment is decided by whichever preset resolves for the note;
// the card itself only carries metadata.
type Card struct {
	Path      string            `json:"path"`
	Folder    string            `json:"folder"`
	Title     string            `json:"title"`
	Tags      []string          `json:"tags"`
	Props     map[string]string `json:"props,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
