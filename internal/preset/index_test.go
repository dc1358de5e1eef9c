package preset

import (
	"testing"
	"time"
)

func TestMatchFolder_SegmentBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		rule   FolderRule
		folder string
		want   bool
	}{
		{"exact", FolderRule{Path: "/Projects"}, "/Projects", true},
		{"exact no subfolders, child", FolderRule{Path: "/Projects"}, "/Projects/Personal", false},
		{"subfolders, child", FolderRule{Path: "/Projects", IncludeSubfolders: true}, "/Projects/Personal", true},
		{"subfolders, deep child", FolderRule{Path: "/Projects", IncludeSubfolders: true}, "/Projects/a/b/c", true},
		{"prefix is not ancestry", FolderRule{Path: "/Proj", IncludeSubfolders: true}, "/Project2", false},
		{"sibling", FolderRule{Path: "/Projects", IncludeSubfolders: true}, "/Archive", false},
		{"rule deeper than folder", FolderRule{Path: "/Projects/Personal"}, "/Projects", false},
		{"root rule with subfolders", FolderRule{Path: "/", IncludeSubfolders: true}, "/Anything", true},
		{"no leading slash equivalence", FolderRule{Path: "Projects", IncludeSubfolders: true}, "/Projects/Sub", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, got := matchFolder(tc.rule, tc.folder)
			if got != tc.want {
				t.Errorf("matchFolder(%+v, %q) = %v, want %v", tc.rule, tc.folder, got, tc.want)
			}
		})
	}
}

func TestQuery_TagAndProperty(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Tagged")
	mTag := mustAddTag(t, s, p.ID, "inbox")
	mProp := mustAddProperty(t, s, p.ID, "status", "active")
	idx := NewMappingIndex(s)

	matches := idx.Query(Context{
		Folder: "/Anywhere",
		Tags:   []string{"other", "inbox"},
		Props:  map[string]string{"status": "active"},
	})
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	ids := map[string]bool{matches[0].Mapping.ID: true, matches[1].Mapping.ID: true}
	if !ids[mTag.ID] || !ids[mProp.ID] {
		t.Errorf("matched ids = %v", ids)
	}

	// No coercion: "1" does not match 1-ish values and case matters.
	none := idx.Query(Context{Props: map[string]string{"status": "Active"}})
	if len(none) != 0 {
		t.Errorf("case-different property matched: %v", none)
	}
}

func TestQuery_DateInclusive(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "January")
	mustAddDate(t, s, p.ID, day(2024, time.January, 1), day(2024, time.January, 31))
	idx := NewMappingIndex(s)

	if got := idx.Query(Context{Ref: day(2024, time.January, 31)}); len(got) != 1 {
		t.Errorf("end boundary: matches = %d, want 1", len(got))
	}
	if got := idx.Query(Context{Ref: day(2024, time.January, 1)}); len(got) != 1 {
		t.Errorf("start boundary: matches = %d, want 1", len(got))
	}
	if got := idx.Query(Context{Ref: day(2024, time.February, 1)}); len(got) != 0 {
		t.Errorf("past end: matches = %d, want 0", len(got))
	}
	if got := idx.Query(Context{}); len(got) != 0 {
		t.Errorf("zero ref date must not match: %d", len(got))
	}
}

func TestQuery_DateIgnoresTimeOfDay(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Launch")
	mustAddDate(t, s, p.ID,
		time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 1, 23, 59, 59, 0, time.UTC))
	idx := NewMappingIndex(s)

	// The rule's boundaries carry clock times, but matching is calendar-day
	// granular: a morning reference on the same day still matches.
	morning := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	if got := idx.Query(Context{Ref: morning}); len(got) != 1 {
		t.Errorf("same-day morning ref: matches = %d, want 1", len(got))
	}
	nextDay := time.Date(2024, time.January, 2, 0, 0, 1, 0, time.UTC)
	if got := idx.Query(Context{Ref: nextDay}); len(got) != 0 {
		t.Errorf("next-day ref: matches = %d, want 0", len(got))
	}
}

func TestQuery_SpecificityScores(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Mixed")
	mustAddFolder(t, s, p.ID, "/Projects/Personal", true)
	mustAddTag(t, s, p.ID, "inbox")
	idx := NewMappingIndex(s)

	matches := idx.Query(Context{Folder: "/Projects/Personal", Tags: []string{"inbox"}})
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	var folderSpec, tagSpec int
	for _, m := range matches {
		switch m.Mapping.Kind {
		case KindFolder:
			folderSpec = m.Specificity
		case KindTag:
			tagSpec = m.Specificity
		}
	}
	if folderSpec <= tagSpec {
		t.Errorf("folder specificity %d must exceed tag specificity %d", folderSpec, tagSpec)
	}
}

func TestQuery_EmptyIndex(t *testing.T) {
	s := testStore(t)
	idx := NewMappingIndex(s)
	if got := idx.Query(Context{Folder: "/Projects"}); len(got) != 0 {
		t.Errorf("matches = %v, want none", got)
	}
}

func TestQuery_RebuildsAfterMutation(t *testing.T) {
	s := testStore(t)
	idx := NewMappingIndex(s)
	ctx := Context{Folder: "/Projects"}

	if got := idx.Query(ctx); len(got) != 0 {
		t.Fatalf("pre-mutation matches = %d", len(got))
	}

	p := mustCreate(t, s, "Late")
	mustAddFolder(t, s, p.ID, "/Projects", false)

	if got := idx.Query(ctx); len(got) != 1 {
		t.Errorf("post-mutation matches = %d, want 1 (lazy rebuild)", len(got))
	}
}

func TestPropertyNames(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Props")
	mustAddProperty(t, s, p.ID, "zeta", "1")
	mustAddProperty(t, s, p.ID, "alpha", "2")
	mustAddTag(t, s, p.ID, "ignored")
	idx := NewMappingIndex(s)

	names := idx.PropertyNames()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("names = %v, want [alpha zeta]", names)
	}
}
