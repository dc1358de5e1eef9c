package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/skoglund/cardnav/internal/apperr"
)

// LiveConfig is the configuration currently driving the card browser. The
// three bundle sections come from whichever preset was applied last; the
// remaining fields are global-only: a preset switch must never reset them.
type LiveConfig struct {
	CardSet    json.RawMessage `json:"cardSetConfig"`
	Layout     json.RawMessage `json:"layoutConfig"`
	CardRender json.RawMessage `json:"cardRenderConfig"`

	// Global-only keys, preserved across applies.
	ActivePresetID     string          `json:"activePresetId"`
	LastActivePresetID string          `json:"lastActivePresetId,omitempty"`
	Toggles            map[string]bool `json:"toggles,omitempty"`
}

// RefreshFunc is notified after a preset has been applied. The applier fires
// it and does not wait; wiring it to a broadcast mechanism is the caller's
// concern.
type RefreshFunc func(presetID string)

// Applier merges a resolved preset's bundle into the live configuration.
type Applier struct {
	mu        sync.Mutex
	store     *Store
	live      LiveConfig
	onRefresh RefreshFunc
}

// NewApplier creates an applier over store. initial seeds the live
// configuration (typically just the global toggles); onRefresh may be nil.
func NewApplier(store *Store, initial LiveConfig, onRefresh RefreshFunc) *Applier {
	if initial.Toggles == nil {
		initial.Toggles = make(map[string]bool)
	}
	return &Applier{store: store, live: initial, onRefresh: onRefresh}
}

// Apply loads the preset and makes it the active configuration, replacing
// the three bundle sections while preserving every global-only key. A preset
// id that no longer resolves (stale cache racing a delete) yields
// ErrStaleReference; the caller must re-resolve rather than retry blindly.
func (a *Applier) Apply(presetID string) error {
	p, err := a.store.GetPreset(presetID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("%w: preset %s", apperr.ErrStaleReference, presetID)
		}
		return err
	}

	a.mu.Lock()
	prev := a.live.ActivePresetID
	a.live.CardSet = append(json.RawMessage(nil), p.Config.CardSet...)
	a.live.Layout = append(json.RawMessage(nil), p.Config.Layout...)
	a.live.CardRender = append(json.RawMessage(nil), p.Config.CardRender...)
	if prev != "" && prev != presetID {
		a.live.LastActivePresetID = prev
	}
	a.live.ActivePresetID = presetID
	a.mu.Unlock()

	if a.onRefresh != nil {
		// Fire and forget; the applier never waits on downstream rendering.
		go a.onRefresh(presetID)
	}
	return nil
}

// Live returns a snapshot of the current live configuration.
func (a *Applier) Live() LiveConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.live
	out.CardSet = append(json.RawMessage(nil), a.live.CardSet...)
	out.Layout = append(json.RawMessage(nil), a.live.Layout...)
	out.CardRender = append(json.RawMessage(nil), a.live.CardRender...)
	out.Toggles = make(map[string]bool, len(a.live.Toggles))
	for k, v := range a.live.Toggles {
		out.Toggles[k] = v
	}
	return out
}

// SetToggle updates a vault-wide toggle. Toggles survive preset switches.
func (a *Applier) SetToggle(name string, value bool) {
	a.mu.Lock()
	a.live.Toggles[name] = value
	a.mu.Unlock()
}
