package preset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/skoglund/cardnav/internal/apperr"
)

func TestOpen_SeedsDefault(t *testing.T) {
	s := testStore(t)
	defID := s.DefaultPresetID()
	if defID == "" {
		t.Fatal("expected a seeded default preset id")
	}
	if _, err := s.GetPreset(defID); err != nil {
		t.Fatalf("default preset not live: %v", err)
	}
}

func TestOpen_CorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := len(s.GetAllPresets()); got != 1 {
		t.Errorf("presets = %d, want only the seeded default", got)
	}
	if s.DefaultPresetID() == "" {
		t.Error("expected synthesized default")
	}
}

func TestOpen_ReloadsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	s1, err := Open(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	p := mustCreate(t, s1, "Work")
	m := mustAddFolder(t, s1, p.ID, "/Work", true)
	if err := s1.UpdatePriorityList([]string{m.ID}); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.GetPreset(p.ID)
	if err != nil {
		t.Fatalf("GetPreset after reload: %v", err)
	}
	if len(got.Mappings) != 1 || got.Mappings[0].ID != m.ID {
		t.Errorf("mappings after reload = %+v", got.Mappings)
	}
	if got.Mappings[0].PresetID != p.ID {
		t.Errorf("mapping preset id = %q, want %q", got.Mappings[0].PresetID, p.ID)
	}
	if pl := s2.GetPriorityList(); len(pl) != 1 || pl[0] != m.ID {
		t.Errorf("priority list after reload = %v", pl)
	}
}

func TestCreatePreset_Validation(t *testing.T) {
	s := testStore(t)
	_, err := s.CreatePreset(Preset{Name: "NoBundle"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	_, err = s.CreatePreset(Preset{Config: testBundle()})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing name: err = %v, want ErrValidation", err)
	}
}

func TestUpdatePreset_NotFound(t *testing.T) {
	s := testStore(t)
	err := s.UpdatePreset(Preset{ID: "ghost", Name: "Ghost", Config: testBundle()})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePreset_ReplacePrunesPriorityList(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Work")
	m := mustAddFolder(t, s, p.ID, "/Work", true)
	if err := s.UpdatePriorityList([]string{m.ID}); err != nil {
		t.Fatal(err)
	}

	// Full replace with no mappings drops m; its priority entry must go too.
	upd := p
	upd.Mappings = nil
	if err := s.UpdatePreset(upd); err != nil {
		t.Fatalf("UpdatePreset: %v", err)
	}
	if pl := s.GetPriorityList(); len(pl) != 0 {
		t.Errorf("priority list = %v, want empty", pl)
	}
}

func TestUpdatePreset_RejectsForeignMappingID(t *testing.T) {
	s := testStore(t)
	owner := mustCreate(t, s, "Owner")
	theirs := mustAddFolder(t, s, owner.ID, "/Theirs", true)
	p := mustCreate(t, s, "Thief")

	// Reusing another preset's mapping id would give two rules one rank.
	upd := p
	upd.Mappings = []Mapping{{
		ID:     theirs.ID,
		Kind:   KindFolder,
		Folder: &FolderRule{Path: "/Mine"},
	}}
	err := s.UpdatePreset(upd)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}

	// The owning preset must be untouched.
	got, err := s.GetPreset(owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Mappings) != 1 || got.Mappings[0].Folder.Path != "/Theirs" {
		t.Errorf("owner mappings = %+v", got.Mappings)
	}
}

func TestUpdatePreset_RejectsDuplicateMappingIDsInPayload(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Doubled")
	m := mustAddFolder(t, s, p.ID, "/A", false)

	upd := p
	upd.Mappings = []Mapping{
		{ID: m.ID, Kind: KindFolder, Folder: &FolderRule{Path: "/A"}},
		{ID: m.ID, Kind: KindFolder, Folder: &FolderRule{Path: "/B"}},
	}
	err := s.UpdatePreset(upd)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestDeletePreset(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Doomed")
	if err := s.DeletePreset(p.ID); err != nil {
		t.Fatalf("DeletePreset: %v", err)
	}
	if _, err := s.GetPreset(p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.DeletePreset(p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteDefaultPreset_Conflict(t *testing.T) {
	s := testStore(t)
	err := s.DeletePreset(s.DefaultPresetID())
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	// Reassign, then the old default becomes deletable.
	oldDefault := s.DefaultPresetID()
	p := mustCreate(t, s, "NewDefault")
	if err := s.SetDefaultPresetID(p.ID); err != nil {
		t.Fatalf("SetDefaultPresetID: %v", err)
	}
	if err := s.DeletePreset(oldDefault); err != nil {
		t.Errorf("delete after reassdefault: %v", err)
	}
}

func TestRemoveMapping_PrunesPriorityList(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Work")
	m1 := mustAddFolder(t, s, p.ID, "/Work", true)
	m2 := mustAddTag(t, s, p.ID, "work")
	if err := s.UpdatePriorityList([]string{m1.ID, m2.ID}); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveMapping(m1.ID); err != nil {
		t.Fatalf("RemoveMapping: %v", err)
	}
	pl := s.GetPriorityList()
	if len(pl) != 1 || pl[0] != m2.ID {
		t.Errorf("priority list = %v, want [%s]", pl, m2.ID)
	}
	if err := s.RemoveMapping(m1.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second remove err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePriorityList_DropsDeadIDs(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Work")
	m := mustAddTag(t, s, p.ID, "work")

	if err := s.UpdatePriorityList([]string{"ghost", m.ID, m.ID}); err != nil {
		t.Fatalf("UpdatePriorityList: %v", err)
	}
	pl := s.GetPriorityList()
	if len(pl) != 1 || pl[0] != m.ID {
		t.Errorf("priority list = %v, want [%s] (dead and duplicate ids dropped)", pl, m.ID)
	}
}

func TestPriorityRankAnnotation(t *testing.T) {
	s := testStore(t)
	p := mustCreate(t, s, "Work")
	m1 := mustAddTag(t, s, p.ID, "a")
	m2 := mustAddTag(t, s, p.ID, "b")
	if err := s.UpdatePriorityList([]string{m2.ID, m1.ID}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPreset(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]Mapping{}
	for _, m := range got.Mappings {
		byID[m.ID] = m
	}
	if r := byID[m2.ID].Priority; r == nil || *r != 0 {
		t.Errorf("m2 rank = %v, want 0", r)
	}
	if r := byID[m1.ID].Priority; r == nil || *r != 1 {
		t.Errorf("m1 rank = %v, want 1", r)
	}

	// Removing the list clears the annotations.
	if err := s.UpdatePriorityList(nil); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetPreset(p.ID)
	for _, m := range got.Mappings {
		if m.Priority != nil {
			t.Errorf("mapping %s still annotated with rank %d", m.ID, *m.Priority)
		}
	}
}

func TestMutationRollsBackOnSaveFailure(t *testing.T) {
	s := testStore(t)
	before := len(s.GetAllPresets())

	// Make the backing path unwritable by turning it into a directory the
	// rename cannot replace.
	if err := os.Remove(s.path); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(s.path, "block"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := s.CreatePreset(Preset{Name: "DoomedWrite", Config: testBundle()})
	if err == nil {
		t.Fatal("expected save failure")
	}
	if got := len(s.GetAllPresets()); got != before {
		t.Errorf("presets = %d after failed save, want %d (rollback)", got, before)
	}
}

func TestInvalidationHookRunsBeforeReturn(t *testing.T) {
	s := testStore(t)
	fired := 0
	s.OnInvalidate(func() { fired++ })

	mustCreate(t, s, "A")
	if fired != 1 {
		t.Errorf("hook fired %d times after create, want 1", fired)
	}
	p := mustCreate(t, s, "B")
	mustAddTag(t, s, p.ID, "x")
	if fired != 3 {
		t.Errorf("hook fired %d times, want 3", fired)
	}
}
