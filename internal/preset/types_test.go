package preset

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMappingValidate_RejectsInvalidStates(t *testing.T) {
	cases := []struct {
		name string
		m    Mapping
	}{
		{"no payload", Mapping{Kind: KindFolder}},
		{"two payloads", Mapping{Kind: KindFolder, Folder: &FolderRule{Path: "/a"}, Tag: &TagRule{Value: "x"}}},
		{"kind payload mismatch", Mapping{Kind: KindTag, Folder: &FolderRule{Path: "/a"}}},
		{"empty folder path", Mapping{Kind: KindFolder, Folder: &FolderRule{}}},
		{"empty tag", Mapping{Kind: KindTag, Tag: &TagRule{}}},
		{"reversed date range", Mapping{Kind: KindDate, Date: &DateRule{Start: day(2024, time.May, 2), End: day(2024, time.May, 1)}}},
		{"unnamed property", Mapping{Kind: KindProperty, Property: &PropertyRule{Value: "v"}}},
		{"unknown kind", Mapping{Kind: "glob", Folder: &FolderRule{Path: "/a"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.m.Validate(); err == nil {
				t.Errorf("expected validation error for %+v", tc.m)
			}
		})
	}

	// Date ranges are day-granular, so an end clock time earlier than the
	// start clock time on the same day is still a valid range.
	sameDay := Mapping{Kind: KindDate, Date: &DateRule{
		Start: time.Date(2024, time.May, 1, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.May, 1, 6, 0, 0, 0, time.UTC),
	}}
	if err := sameDay.Validate(); err != nil {
		t.Errorf("same-day range with reversed clock times: %v", err)
	}
}

func TestMappingJSON_FolderWireShape(t *testing.T) {
	m := Mapping{
		ID:     "m1",
		Kind:   KindFolder,
		Folder: &FolderRule{Path: "/Projects", IncludeSubfolders: true},
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["type"] != "folder" || wire["value"] != "/Projects" || wire["includeSubfolders"] != true {
		t.Errorf("wire = %v", wire)
	}
	if _, ok := wire["dateRange"]; ok {
		t.Error("folder mapping must not carry a dateRange on the wire")
	}

	var back Mapping
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.Folder == nil || back.Folder.Path != "/Projects" || !back.Folder.IncludeSubfolders {
		t.Errorf("round trip = %+v", back)
	}
	if back.Tag != nil || back.Date != nil || back.Property != nil {
		t.Error("other variants must stay nil")
	}
}

func TestConfigBundleValidate(t *testing.T) {
	if err := testBundle().Validate(); err != nil {
		t.Errorf("valid bundle rejected: %v", err)
	}
	missing := ConfigBundle{CardSet: json.RawMessage(`{}`)}
	if err := missing.Validate(); err == nil {
		t.Error("bundle with missing sections accepted")
	}
	bad := testBundle()
	bad.Layout = json.RawMessage(`{broken`)
	if err := bad.Validate(); err == nil {
		t.Error("bundle with invalid JSON accepted")
	}
}
