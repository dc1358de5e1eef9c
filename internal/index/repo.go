package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skoglund/cardnav/internal/apperr"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Folder    string
	Title     string
	Checksum  string
	Tags      []string
	Props     map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertNote inserts or replaces a note's metadata. A zero CreatedAt keeps
// the stored creation time of an existing row (or falls back to now for a
// new one): notes without a frontmatter date keep the time they were first
// indexed as their reference date.
func (db *DB) UpsertNote(n NoteRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		var existing time.Time
		err := tx.QueryRow(`SELECT created_at FROM notes WHERE path = ?`, n.Path).Scan(&existing)
		switch {
		case err == nil:
			createdAt = existing
		case errors.Is(err, sql.ErrNoRows):
			createdAt = time.Now().UTC()
		default:
			return fmt.Errorf("index: read created_at: %w", err)
		}
	}

	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	propsJSON, _ := json.Marshal(nonNilMap(n.Props))

	_, err = tx.Exec(`
		INSERT INTO notes (path, folder, title, checksum, tags, props, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			folder     = excluded.folder,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			props      = excluded.props,
			body       = excluded.body,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, n.Path, n.Folder, n.Title, n.Checksum, string(tagsJSON), string(propsJSON), body, createdAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	return tx.Commit()
}

// DeleteNote removes a note from the index.
func (db *DB) DeleteNote(path string) error {
	_, err := db.conn.Exec(`DELETE FROM notes WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return nil
}

// GetNote returns the indexed metadata for a note, or ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`
		SELECT path, folder, title, checksum, tags, props, created_at, updated_at
		FROM notes WHERE path = ?
	`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: note %s", apperr.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// ListCards returns notes under folder (recursively when recursive is set),
// optionally filtered by tag, with the total count for pagination.
// sort is one of "updated_at", "created_at", "title", "path".
func (db *DB) ListCards(folder string, recursive bool, tag, sort string, limit, offset int) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if folder == "" {
		folder = "/"
	}

	where := `folder = ?`
	args := []any{folder}
	if recursive {
		if folder == "/" {
			where = `1=1`
			args = nil
		} else {
			where = `(folder = ? OR folder LIKE ? || '/%')`
			args = []any{folder, folder}
		}
	}
	if tag != "" {
		// Tags are stored as a JSON array of strings; match the quoted form.
		where += ` AND tags LIKE ?`
		args = append(args, `%"`+tag+`"%`)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count cards: %w", err)
	}

	order := "updated_at DESC"
	switch sort {
	case "title":
		order = "title COLLATE NOCASE ASC"
	case "path":
		order = "path ASC"
	case "created_at":
		order = "created_at DESC"
	}

	rows, err := db.conn.Query(`
		SELECT path, folder, title, checksum, tags, props, created_at, updated_at
		FROM notes WHERE `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list cards: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// Search performs a LIKE-based match over titles, bodies, and tags.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, title, substr(body, 1, 200)
		FROM notes
		WHERE title LIKE ? OR body LIKE ? OR tags LIKE ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNote(row scannable) (*NoteRow, error) {
	var n NoteRow
	var tagsJSON, propsJSON string
	if err := row.Scan(&n.Path, &n.Folder, &n.Title, &n.Checksum, &tagsJSON, &propsJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		n.Tags = []string{}
	}
	if err := json.Unmarshal([]byte(propsJSON), &n.Props); err != nil {
		n.Props = map[string]string{}
	}
	return &n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
