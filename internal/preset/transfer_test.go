package preset

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/skoglund/cardnav/internal/apperr"
)

func TestExportImport_RoundTrip(t *testing.T) {
	src := testStore(t)
	work := mustCreate(t, src, "Work")
	home := mustCreate(t, src, "Home")
	f := mustAddFolder(t, src, work.ID, "/Work", true)
	tg := mustAddTag(t, src, home.ID, "personal")
	dt := mustAddDate(t, src, home.ID, day(2024, time.January, 1), day(2024, time.December, 31))
	pr := mustAddProperty(t, src, work.ID, "status", "active")
	if err := src.UpdatePriorityList([]string{tg.ID, f.ID}); err != nil {
		t.Fatal(err)
	}
	if err := src.SetDefaultPresetID(home.ID); err != nil {
		t.Fatal(err)
	}

	raw, err := src.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst, err := Open(filepath.Join(t.TempDir(), "fresh.json"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := dst.Import(raw); err != nil {
		t.Fatalf("Import: %v", err)
	}

	// Identical preset ids in identical order.
	var srcIDs, dstIDs []string
	for _, p := range src.GetAllPresets() {
		srcIDs = append(srcIDs, p.ID)
	}
	for _, p := range dst.GetAllPresets() {
		dstIDs = append(dstIDs, p.ID)
	}
	if !reflect.DeepEqual(srcIDs, dstIDs) {
		t.Errorf("preset ids: src %v dst %v", srcIDs, dstIDs)
	}

	// Identical mapping ids and variants.
	for _, wantID := range []string{f.ID, tg.ID, dt.ID, pr.ID} {
		found := false
		for _, p := range dst.GetAllPresets() {
			for _, m := range p.Mappings {
				if m.ID == wantID {
					found = true
				}
			}
		}
		if !found {
			t.Errorf("mapping %s lost in round trip", wantID)
		}
	}

	if !reflect.DeepEqual(src.GetPriorityList(), dst.GetPriorityList()) {
		t.Errorf("priority list: src %v dst %v", src.GetPriorityList(), dst.GetPriorityList())
	}
	if src.DefaultPresetID() != dst.DefaultPresetID() {
		t.Errorf("default: src %s dst %s", src.DefaultPresetID(), dst.DefaultPresetID())
	}

	// Variant payloads survive intact.
	gotHome, err := dst.GetPreset(home.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range gotHome.Mappings {
		switch m.ID {
		case tg.ID:
			if m.Kind != KindTag || m.Tag == nil || m.Tag.Value != "personal" {
				t.Errorf("tag mapping corrupted: %+v", m)
			}
		case dt.ID:
			if m.Kind != KindDate || m.Date == nil || !m.Date.End.Equal(day(2024, time.December, 31)) {
				t.Errorf("date mapping corrupted: %+v", m)
			}
		}
	}
}

func TestImport_RejectsBadPayloads(t *testing.T) {
	s := testStore(t)

	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{broken`},
		{"preset without id", `{"presets":[{"name":"X","configBundle":{"cardSetConfig":{},"layoutConfig":{},"cardRenderConfig":{}},"mappings":[]}]}`},
		{"dangling default", `{"presets":[],"defaultPresetId":"ghost"}`},
		{"unknown mapping type", `{"presets":[{"id":"p1","name":"X","configBundle":{"cardSetConfig":{},"layoutConfig":{},"cardRenderConfig":{}},"mappings":[{"id":"m1","type":"regex","value":".*"}]}]}`},
		{"mapping id reused across presets", `{"presets":[` +
			`{"id":"p1","name":"A","configBundle":{"cardSetConfig":{},"layoutConfig":{},"cardRenderConfig":{}},"mappings":[{"id":"m1","type":"tag","value":"x"}]},` +
			`{"id":"p2","name":"B","configBundle":{"cardSetConfig":{},"layoutConfig":{},"cardRenderConfig":{}},"mappings":[{"id":"m1","type":"tag","value":"y"}]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Import([]byte(tc.raw)); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestImport_SeedsDefaultWhenAbsent(t *testing.T) {
	s := testStore(t)
	payload := `{"presets":[{"id":"p1","name":"Only","configBundle":{"cardSetConfig":{},"layoutConfig":{},"cardRenderConfig":{}},"mappings":[]}],"priorityList":[]}`
	if err := s.Import([]byte(payload)); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if s.DefaultPresetID() == "" {
		t.Error("expected seeded default after import without one")
	}
	if _, err := s.GetPreset("p1"); err != nil {
		t.Errorf("imported preset missing: %v", err)
	}
}

func TestImport_PrunesDeadPriorityEntries(t *testing.T) {
	s := testStore(t)
	payload := `{"presets":[{"id":"p1","name":"Only","configBundle":{"cardSetConfig":{},"layoutConfig":{},"cardRenderConfig":{}},"mappings":[{"id":"m1","type":"tag","value":"x"}]}],"priorityList":["m1","ghost"],"defaultPresetId":"p1"}`
	if err := s.Import([]byte(payload)); err != nil {
		t.Fatalf("Import: %v", err)
	}
	pl := s.GetPriorityList()
	if len(pl) != 1 || pl[0] != "m1" {
		t.Errorf("priority list = %v, want [m1]", pl)
	}
}
