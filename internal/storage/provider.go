// Package storage defines the read-only vault file-system abstraction.
//
// cardnav never writes into the vault: notes are authored by the editor the
// vault belongs to. The provider exists so context extraction and index sync
// can be tested against a temp directory.
package storage

import "github.com/skoglund/cardnav/internal/models"

// Provider is the interface for vault file access.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
}
