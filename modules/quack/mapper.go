package quack

import (
	"fmt"
	"strings"
	"time"

	"cardforge/modules/cards"
)

/*
	Mapping from the Quack character format to Character Card V3. Hard
	constraints carried over from the source format:

	  - greeting HTML passes through byte for byte
	  - attrs render as "[Label: Value]" lines
	  - constant world book entries keep their empty key lists
	  - selective is true exactly when secondary keys exist
*/

const DefaultLorebookName = "Quack Lore"

// FormatAttrs renders attrs as newline-joined [Label: Value] lines.
func FormatAttrs(attrs []map[string]any, visibleOnly bool) string {
	var lines []string

	for _, attr := range attrs {
		if visibleOnly && !attrVisible(attr) {
			continue
		}

		label := stringValue(attr["label"])
		value := stringValue(attr["value"])
		if label != "" && value != "" {
			lines = append(lines, fmt.Sprintf("[%s: %s]", label, value))
		}
	}

	return strings.Join(lines, "\n")
}

func attrVisible(attr map[string]any) bool {
	visible, ok := attr["isVisible"].(bool)
	if !ok {
		return true
	}
	return visible
}

func extractPersonality(attrs []map[string]any) string {
	for _, attr := range attrs {
		if strings.ToLower(stringValue(attr["label"])) == "personality" {
			return stringValue(attr["value"])
		}
	}
	return ""
}

// ExtractGreetings picks first_mes and the alternates. Priority: an
// already-split alternate_greetings field, then prologue.greetings, then
// just firstMes.
func ExtractGreetings(info map[string]any) (string, []string) {
	firstMes := stringValue(info["firstMes"])

	if alternates := stringList(info["alternate_greetings"]); len(alternates) > 0 {
		return firstMes, alternates
	}

	prologue, _ := info["prologue"].(map[string]any)
	rawGreetings, _ := prologue["greetings"].([]any)

	var values []string
	for _, g := range rawGreetings {
		switch v := g.(type) {
		case map[string]any:
			values = append(values, stringValue(v["value"]))
		case string:
			values = append(values, v)
		}
	}

	if len(values) > 0 {
		if firstMes == "" {
			return values[0], values[1:]
		}
		return firstMes, values
	}

	return firstMes, nil
}

func extractTags(info, char map[string]any) []string {
	tags := stringList(info["tags"])

	if len(tags) == 0 {
		generateImage, _ := char["generateImage"].(map[string]any)
		if allTags, ok := generateImage["allTags"].([]any); ok {
			for _, t := range allTags {
				tag, ok := t.(map[string]any)
				if !ok {
					continue
				}

				label := stringValue(tag["label"])
				if label == "" {
					label = stringValue(tag["value"])
				}
				if label != "" {
					tags = append(tags, label)
				}
			}
		}
	}

	if !contains(tags, "QuackAI") {
		tags = append([]string{"QuackAI"}, tags...)
	}

	return tags
}

// MapLorebookEntry maps one world book entry. Entries with constant set
// keep an empty key list; non-constant entries without keys fall back to
// the entry name as their key.
func MapLorebookEntry(entry map[string]any, index int) cards.LorebookEntry {
	keys := anyStringList(entry["keywords"])
	if keys == nil {
		keys = anyStringList(entry["triggerKeywords"])
	}
	if keys == nil {
		keys = []string{}
	}

	constant, _ := entry["constant"].(bool)

	name := stringValue(entry["name"])
	if len(keys) == 0 && !constant && name != "" {
		keys = []string{name}
	}

	secondaryKeys := anyStringList(entry["secondaryKeys"])
	if secondaryKeys == nil {
		secondaryKeys = anyStringList(entry["secondary_keys"])
	}
	if secondaryKeys == nil {
		secondaryKeys = []string{}
	}

	selective := len(secondaryKeys) > 0

	position := "before_char"
	if pos, ok := entry["position"].(float64); ok && pos == 1 {
		position = "after_char"
	}

	extensions := map[string]any{}
	if _, ok := entry["matchWholeWords"]; ok {
		matchWholeWords, _ := entry["matchWholeWords"].(bool)
		extensions["match_whole_words"] = matchWholeWords
	}
	if _, ok := entry["scanDepth"]; ok {
		extensions["scan_depth"] = entry["scanDepth"]
	}
	if depth, ok := entry["depth"].(float64); ok && depth != 0 {
		extensions["depth"] = entry["depth"]
	}
	if role := stringValue(entry["role"]); role != "" {
		extensions["role"] = role
	}

	enabled := true
	if v, ok := entry["enabled"].(bool); ok {
		enabled = v
	}

	return cards.LorebookEntry{
		Keys:           keys,
		Content:        stringValue(entry["content"]),
		Extensions:     extensions,
		Enabled:        enabled,
		InsertionOrder: index + 1,
		CaseSensitive:  boolPtr(false),
		UseRegex:       false,
		Constant:       boolPtr(constant),
		Name:           strPtr(name),
		Priority:       intPtr(10),
		ID:             index + 1,
		Selective:      boolPtr(selective),
		SecondaryKeys:  secondaryKeys,
		Position:       strPtr(position),
	}
}

// MapLorebook maps a full entry list into a world book.
func MapLorebook(entries []map[string]any, bookName string) *cards.Lorebook {
	mapped := make([]cards.LorebookEntry, 0, len(entries))
	for i, entry := range entries {
		mapped = append(mapped, MapLorebookEntry(entry, i))
	}

	return &cards.Lorebook{
		Name:              bookName,
		ScanDepth:         intPtr(50),
		TokenBudget:       intPtr(500),
		RecursiveScanning: boolPtr(false),
		Extensions:        map[string]any{},
		Entries:           mapped,
	}
}

// MapToV3 converts a fetched character to a V3 card.
func MapToV3(info map[string]any, lorebookEntries []map[string]any) *cards.CharacterCardV3 {
	var char map[string]any
	if charList, ok := info["charList"].([]any); ok && len(charList) > 0 {
		char, _ = charList[0].(map[string]any)
	}
	if char == nil {
		char = map[string]any{}
	}

	name := stringValue(char["name"])
	if _, ok := char["name"]; !ok {
		name = stringValue(info["name"])
	}
	if name == "" {
		name = "Unknown"
	}

	var allAttrs []map[string]any
	for _, key := range []string{"attrs", "adviseAttrs", "customAttrs"} {
		if list, ok := char[key].([]any); ok {
			for _, item := range list {
				if attr, ok := item.(map[string]any); ok {
					allAttrs = append(allAttrs, attr)
				}
			}
		}
	}

	intro := stringValue(info["intro"])
	if _, ok := info["intro"]; !ok {
		intro = stringValue(char["intro"])
	}

	description := intro
	if attrBlock := FormatAttrs(allAttrs, true); attrBlock != "" {
		if intro != "" {
			description = intro + "\n\n" + attrBlock
		} else {
			description = attrBlock
		}
	}

	firstMes, alternateGreetings := ExtractGreetings(info)
	if alternateGreetings == nil {
		alternateGreetings = []string{}
	}

	var characterBook *cards.Lorebook
	if len(lorebookEntries) > 0 {
		characterBook = MapLorebook(lorebookEntries, DefaultLorebookName)
	} else if books, ok := info["characterbooks"].([]any); ok {
		var inline []map[string]any
		for _, b := range books {
			book, ok := b.(map[string]any)
			if !ok {
				continue
			}
			if entryList, ok := book["entryList"].([]any); ok {
				for _, e := range entryList {
					if entry, ok := e.(map[string]any); ok {
						inline = append(inline, entry)
					}
				}
			}
		}
		if len(inline) > 0 {
			characterBook = MapLorebook(inline, DefaultLorebookName)
		}
	}

	creator := stringValue(info["authorName"])
	if creator == "" {
		creator = stringValue(info["author"])
	}

	now := time.Now().Unix()

	return &cards.CharacterCardV3{
		Spec:        cards.SpecV3,
		SpecVersion: cards.SpecVersionV3,
		Data: cards.CardData{
			Name:               name,
			Description:        description,
			Personality:        extractPersonality(allAttrs),
			FirstMes:           firstMes,
			CreatorNotes:       stringValue(info["charCreatorNotes"]),
			AlternateGreetings: alternateGreetings,
			Tags:               extractTags(info, char),
			Creator:            creator,
			CharacterVersion:   "1.0",
			Extensions:         map[string]any{},
			CharacterBook:      characterBook,
			GroupOnlyGreetings: []string{},
			Assets: []cards.Asset{
				{Type: "icon", URI: "ccdefault:", Name: "main", Ext: "png"},
			},
			CreationDate:     &now,
			ModificationDate: &now,
		},
	}
}

// MapLorebookOnly maps just the world book, for imports where the user
// wants the lore without the character.
func MapLorebookOnly(entries []map[string]any, bookName string) *cards.Lorebook {
	if bookName == "" {
		bookName = DefaultLorebookName
	}
	return MapLorebook(entries, bookName)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// stringList converts a JSON list to strings, dropping empties.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	var result []string
	for _, item := range items {
		var s string
		switch value := item.(type) {
		case string:
			s = value
		case float64:
			s = strings.TrimSuffix(fmt.Sprintf("%v", value), ".0")
		case nil:
			continue
		default:
			s = fmt.Sprintf("%v", value)
		}
		if s != "" {
			result = append(result, s)
		}
	}

	return result
}

// anyStringList is stringList but also accepts a bare scalar, and returns
// nil only when the key was missing entirely.
func anyStringList(v any) []string {
	if v == nil {
		return nil
	}

	if _, ok := v.([]any); ok {
		list := stringList(v)
		if list == nil {
			return []string{}
		}
		return list
	}

	s := stringValue(v)
	if s == "" {
		return []string{}
	}
	return []string{s}
}

func contains(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func boolPtr(v bool) *bool    { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
