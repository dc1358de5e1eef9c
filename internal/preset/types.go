// Package preset implements the preset mapping and resolution engine: a
// durable store of presets and their matching rules, a derived mapping index,
// the priority/specificity resolver, a resolution cache, and the applier that
// merges a winning preset into the live configuration.
package preset

import (
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MappingKind discriminates the mapping variants.
type MappingKind string

// Mapping kinds.
const (
	KindFolder   MappingKind = "folder"
	KindTag      MappingKind = "tag"
	KindDate     MappingKind = "date"
	KindProperty MappingKind = "property"
)

// FolderRule matches notes whose folder equals Path, or sits below it when
// IncludeSubfolders is set. Ancestry is checked per path segment, so
// "/Proj" never matches "/Project2".
type FolderRule struct {
	Path              string `json:"path"`
	IncludeSubfolders bool   `json:"includeSubfolders"`
}

// TagRule matches notes whose tag set contains Value (exact string match).
type TagRule struct {
	Value string `json:"value"`
}

// DateRule matches notes whose creation date falls within [Start, End],
// both ends inclusive. Granularity is the calendar day: time-of-day on the
// boundaries and on the note's reference date is ignored.
type DateRule struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PropertyRule matches notes whose frontmatter property Name equals Value.
// Plain string equality, no type coercion.
type PropertyRule struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Mapping is a single matching rule bound to one preset. Kind selects which
// variant payload is populated; the other payloads are nil. The optional
// Priority mirrors the mapping's position in the global priority list and is
// maintained by the store, not by callers.
type Mapping struct {
	ID       string
	PresetID string
	Kind     MappingKind
	Folder   *FolderRule
	Tag      *TagRule
	Date     *DateRule
	Property *PropertyRule
	Priority *int
}

// Validate checks that exactly the payload matching Kind is populated and
// that it is well formed.
func (m *Mapping) Validate() error {
	populated := 0
	for _, set := range []bool{m.Folder != nil, m.Tag != nil, m.Date != nil, m.Property != nil} {
		if set {
			populated++
		}
	}
	if populated != 1 {
		return fmt.Errorf("mapping: exactly one variant payload required, got %d", populated)
	}
	switch m.Kind {
	case KindFolder:
		if m.Folder == nil {
			return fmt.Errorf("mapping: kind %q without folder payload", m.Kind)
		}
		return validation.ValidateStruct(m.Folder,
			validation.Field(&m.Folder.Path, validation.Required),
		)
	case KindTag:
		if m.Tag == nil {
			return fmt.Errorf("mapping: kind %q without tag payload", m.Kind)
		}
		return validation.ValidateStruct(m.Tag,
			validation.Field(&m.Tag.Value, validation.Required),
		)
	case KindDate:
		if m.Date == nil {
			return fmt.Errorf("mapping: kind %q without date payload", m.Kind)
		}
		if m.Date.Start.IsZero() || m.Date.End.IsZero() {
			return fmt.Errorf("mapping: date range requires both start and end")
		}
		if dayOf(m.Date.End).Before(dayOf(m.Date.Start)) {
			return fmt.Errorf("mapping: date range end before start")
		}
		return nil
	case KindProperty:
		if m.Property == nil {
			return fmt.Errorf("mapping: kind %q without property payload", m.Kind)
		}
		return validation.ValidateStruct(m.Property,
			validation.Field(&m.Property.Name, validation.Required),
		)
	default:
		return fmt.Errorf("mapping: unknown kind %q", m.Kind)
	}
}

// mappingJSON is the persisted wire shape of a Mapping.
type mappingJSON struct {
	ID                string       `json:"id"`
	Type              MappingKind  `json:"type"`
	Value             *string      `json:"value,omitempty"`
	IncludeSubfolders *bool        `json:"includeSubfolders,omitempty"`
	DateRange         *DateRule    `json:"dateRange,omitempty"`
	Property          *PropertyRule `json:"property,omitempty"`
	Priority          *int         `json:"priority,omitempty"`
}

// MarshalJSON renders the tagged union into the flat persisted record.
func (m Mapping) MarshalJSON() ([]byte, error) {
	out := mappingJSON{ID: m.ID, Type: m.Kind, Priority: m.Priority}
	switch m.Kind {
	case KindFolder:
		if m.Folder != nil {
			out.Value = &m.Folder.Path
			out.IncludeSubfolders = &m.Folder.IncludeSubfolders
		}
	case KindTag:
		if m.Tag != nil {
			out.Value = &m.Tag.Value
		}
	case KindDate:
		out.DateRange = m.Date
	case KindProperty:
		out.Property = m.Property
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the tagged union from the flat persisted record.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var raw mappingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Mapping{ID: raw.ID, Kind: raw.Type, Priority: raw.Priority}
	switch raw.Type {
	case KindFolder:
		rule := FolderRule{}
		if raw.Value != nil {
			rule.Path = *raw.Value
		}
		if raw.IncludeSubfolders != nil {
			rule.IncludeSubfolders = *raw.IncludeSubfolders
		}
		m.Folder = &rule
	case KindTag:
		rule := TagRule{}
		if raw.Value != nil {
			rule.Value = *raw.Value
		}
		m.Tag = &rule
	case KindDate:
		if raw.DateRange == nil {
			return fmt.Errorf("mapping %s: date mapping without dateRange", raw.ID)
		}
		m.Date = raw.DateRange
	case KindProperty:
		if raw.Property == nil {
			return fmt.Errorf("mapping %s: property mapping without property", raw.ID)
		}
		m.Property = raw.Property
	default:
		return fmt.Errorf("mapping %s: unknown type %q", raw.ID, raw.Type)
	}
	return nil
}

// ConfigBundle is the opaque configuration a preset carries. The engine never
// inspects the section contents; it only requires that each section is
// present and is valid JSON.
type ConfigBundle struct {
	CardSet    json.RawMessage `json:"cardSetConfig"`
	Layout     json.RawMessage `json:"layoutConfig"`
	CardRender json.RawMessage `json:"cardRenderConfig"`
}

// Validate checks that every section is present.
func (c ConfigBundle) Validate() error {
	for name, section := range map[string]json.RawMessage{
		"cardSetConfig":    c.CardSet,
		"layoutConfig":     c.Layout,
		"cardRenderConfig": c.CardRender,
	} {
		if len(section) == 0 {
			return fmt.Errorf("config bundle: missing %s", name)
		}
		if !json.Valid(section) {
			return fmt.Errorf("config bundle: invalid JSON in %s", name)
		}
	}
	return nil
}

// Preset is a named, persisted configuration bundle plus its matching rules.
type Preset struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Config      ConfigBundle `json:"configBundle"`
	Mappings    []Mapping    `json:"mappings"`
}

// Validate checks the structural invariants of a preset.
func (p *Preset) Validate() error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 256)),
	); err != nil {
		return err
	}
	if err := p.Config.Validate(); err != nil {
		return err
	}
	for i := range p.Mappings {
		if err := p.Mappings[i].Validate(); err != nil {
			return fmt.Errorf("mapping %d: %w", i, err)
		}
	}
	return nil
}

func (p *Preset) clone() Preset {
	out := *p
	out.Config = ConfigBundle{
		CardSet:    append(json.RawMessage(nil), p.Config.CardSet...),
		Layout:     append(json.RawMessage(nil), p.Config.Layout...),
		CardRender: append(json.RawMessage(nil), p.Config.CardRender...),
	}
	out.Mappings = make([]Mapping, len(p.Mappings))
	for i, m := range p.Mappings {
		out.Mappings[i] = m.clone()
	}
	return out
}

func (m Mapping) clone() Mapping {
	out := m
	if m.Folder != nil {
		f := *m.Folder
		out.Folder = &f
	}
	if m.Tag != nil {
		tg := *m.Tag
		out.Tag = &tg
	}
	if m.Date != nil {
		d := *m.Date
		out.Date = &d
	}
	if m.Property != nil {
		pr := *m.Property
		out.Property = &pr
	}
	if m.Priority != nil {
		pn := *m.Priority
		out.Priority = &pn
	}
	return out
}

// Context is the ephemeral, request-scoped input to resolution: where a note
// sits in the vault. It is built fresh per resolution call and never
// persisted. No case normalisation happens here; tag and property matching
// is case-sensitive and callers own any normalisation policy.
type Context struct {
	Folder string
	Tags   []string
	Props  map[string]string
	Ref    time.Time
}
