package preset

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.json")
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func testBundle() ConfigBundle {
	return ConfigBundle{
		CardSet:    json.RawMessage(`{"source":"folder"}`),
		Layout:     json.RawMessage(`{"columns":3}`),
		CardRender: json.RawMessage(`{"showTitle":true}`),
	}
}

func mustCreate(t *testing.T, s *Store, name string) Preset {
	t.Helper()
	p, err := s.CreatePreset(Preset{Name: name, Config: testBundle()})
	if err != nil {
		t.Fatalf("CreatePreset(%s): %v", name, err)
	}
	return p
}

func mustAddFolder(t *testing.T, s *Store, presetID, path string, sub bool) Mapping {
	t.Helper()
	m, err := s.AddMapping(presetID, Mapping{
		Kind:   KindFolder,
		Folder: &FolderRule{Path: path, IncludeSubfolders: sub},
	})
	if err != nil {
		t.Fatalf("AddMapping(folder %s): %v", path, err)
	}
	return m
}

func mustAddTag(t *testing.T, s *Store, presetID, value string) Mapping {
	t.Helper()
	m, err := s.AddMapping(presetID, Mapping{Kind: KindTag, Tag: &TagRule{Value: value}})
	if err != nil {
		t.Fatalf("AddMapping(tag %s): %v", value, err)
	}
	return m
}

func mustAddDate(t *testing.T, s *Store, presetID string, start, end time.Time) Mapping {
	t.Helper()
	m, err := s.AddMapping(presetID, Mapping{Kind: KindDate, Date: &DateRule{Start: start, End: end}})
	if err != nil {
		t.Fatalf("AddMapping(date): %v", err)
	}
	return m
}

func mustAddProperty(t *testing.T, s *Store, presetID, name, value string) Mapping {
	t.Helper()
	m, err := s.AddMapping(presetID, Mapping{Kind: KindProperty, Property: &PropertyRule{Name: name, Value: value}})
	if err != nil {
		t.Fatalf("AddMapping(property %s): %v", name, err)
	}
	return m
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
