package cards

import (
	"encoding/json"
	"reflect"
	"strings"
)

/*
	Character Card V3 models. Every struct keeps unknown JSON fields in an
	Extra side map so a card written by another tool survives a read/write
	cycle with all of its vendor fields intact.
*/

const (
	SpecV3        = "chara_card_v3"
	SpecVersionV3 = "3.0"

	FormatV2 = "v2"
	FormatV3 = "v3"
)

// LorebookEntry is one world book entry.
type LorebookEntry struct {
	Keys           []string       `json:"keys"`
	Content        string         `json:"content"`
	Extensions     map[string]any `json:"extensions"`
	Enabled        bool           `json:"enabled"`
	InsertionOrder int            `json:"insertion_order"`
	CaseSensitive  *bool          `json:"case_sensitive"`
	UseRegex       bool           `json:"use_regex"`
	Constant       *bool          `json:"constant"`
	Name           *string        `json:"name"`
	Priority       *int           `json:"priority"`
	ID             any            `json:"id"`
	Comment        *string        `json:"comment"`
	Selective      *bool          `json:"selective"`
	SecondaryKeys  []string       `json:"secondary_keys"`
	Position       *string        `json:"position"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Lorebook is the world book attached to a card.
type Lorebook struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	ScanDepth         *int            `json:"scan_depth"`
	TokenBudget       *int            `json:"token_budget"`
	RecursiveScanning *bool           `json:"recursive_scanning"`
	Extensions        map[string]any  `json:"extensions"`
	Entries           []LorebookEntry `json:"entries"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Asset is a character asset reference (icon, background, ...).
type Asset struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
	Name string `json:"name"`
	Ext  string `json:"ext"`

	Extra map[string]json.RawMessage `json:"-"`
}

// CardData holds the card fields themselves.
type CardData struct {
	Name                     string            `json:"name"`
	Description              string            `json:"description"`
	Tags                     []string          `json:"tags"`
	Creator                  string            `json:"creator"`
	CharacterVersion         string            `json:"character_version"`
	MesExample               string            `json:"mes_example"`
	Extensions               map[string]any    `json:"extensions"`
	SystemPrompt             string            `json:"system_prompt"`
	PostHistoryInstructions  string            `json:"post_history_instructions"`
	FirstMes                 string            `json:"first_mes"`
	AlternateGreetings       []string          `json:"alternate_greetings"`
	Personality              string            `json:"personality"`
	Scenario                 string            `json:"scenario"`
	CreatorNotes             string            `json:"creator_notes"`
	CharacterBook            *Lorebook         `json:"character_book"`
	Assets                   []Asset           `json:"assets"`
	Nickname                 *string           `json:"nickname"`
	CreatorNotesMultilingual map[string]string `json:"creator_notes_multilingual"`
	Source                   []string          `json:"source"`
	GroupOnlyGreetings       []string          `json:"group_only_greetings"`
	CreationDate             *int64            `json:"creation_date"`
	ModificationDate         *int64            `json:"modification_date"`

	Extra map[string]json.RawMessage `json:"-"`
}

// CharacterCardV3 is the card root object.
type CharacterCardV3 struct {
	Spec        string   `json:"spec"`
	SpecVersion string   `json:"spec_version"`
	Data        CardData `json:"data"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Alias types break the MarshalJSON/UnmarshalJSON recursion.
type (
	lorebookEntryJSON   LorebookEntry
	lorebookJSON        Lorebook
	assetJSON           Asset
	cardDataJSON        CardData
	characterCardV3JSON CharacterCardV3
)

var (
	lorebookEntryFields   = jsonFieldSet(lorebookEntryJSON{})
	lorebookFields        = jsonFieldSet(lorebookJSON{})
	assetFields           = jsonFieldSet(assetJSON{})
	cardDataFields        = jsonFieldSet(cardDataJSON{})
	characterCardV3Fields = jsonFieldSet(characterCardV3JSON{})
)

func jsonFieldSet(v any) map[string]struct{} {
	fields := make(map[string]struct{})

	t := reflect.TypeOf(v)
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = struct{}{}
	}

	return fields
}

// splitExtra collects the keys of b that are not known struct fields.
func splitExtra(b []byte, known map[string]struct{}) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}

	for name := range known {
		delete(all, name)
	}

	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// mergeExtra folds the extra map back into the marshaled struct. Known
// fields always win over stale extras.
func mergeExtra(base []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return base, nil
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(base, &all); err != nil {
		return nil, err
	}

	for name, value := range extra {
		if _, ok := all[name]; !ok {
			all[name] = value
		}
	}

	return json.Marshal(all)
}

func (e *LorebookEntry) UnmarshalJSON(b []byte) error {
	known := lorebookEntryJSON{
		Keys:          []string{},
		Extensions:    map[string]any{},
		Enabled:       true,
		SecondaryKeys: []string{},
	}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}

	extra, err := splitExtra(b, lorebookEntryFields)
	if err != nil {
		return err
	}
	known.Extra = extra

	*e = LorebookEntry(known)
	return nil
}

func (e LorebookEntry) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(lorebookEntryJSON(e))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, e.Extra)
}

func (l *Lorebook) UnmarshalJSON(b []byte) error {
	known := lorebookJSON{
		Extensions: map[string]any{},
		Entries:    []LorebookEntry{},
	}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}

	extra, err := splitExtra(b, lorebookFields)
	if err != nil {
		return err
	}
	known.Extra = extra

	*l = Lorebook(known)
	return nil
}

func (l Lorebook) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(lorebookJSON(l))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, l.Extra)
}

func (a *Asset) UnmarshalJSON(b []byte) error {
	var known assetJSON
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}

	extra, err := splitExtra(b, assetFields)
	if err != nil {
		return err
	}
	known.Extra = extra

	*a = Asset(known)
	return nil
}

func (a Asset) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(assetJSON(a))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, a.Extra)
}

func (d *CardData) UnmarshalJSON(b []byte) error {
	known := cardDataJSON{
		Tags:               []string{},
		Extensions:         map[string]any{},
		AlternateGreetings: []string{},
		GroupOnlyGreetings: []string{},
	}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}

	extra, err := splitExtra(b, cardDataFields)
	if err != nil {
		return err
	}
	known.Extra = extra

	*d = CardData(known)
	return nil
}

func (d CardData) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(cardDataJSON(d))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, d.Extra)
}

func (c *CharacterCardV3) UnmarshalJSON(b []byte) error {
	known := characterCardV3JSON{
		Spec:        SpecV3,
		SpecVersion: SpecVersionV3,
	}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}

	extra, err := splitExtra(b, characterCardV3Fields)
	if err != nil {
		return err
	}
	known.Extra = extra

	*c = CharacterCardV3(known)
	return nil
}

func (c CharacterCardV3) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(characterCardV3JSON(c))
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, c.Extra)
}
