package quack

import (
	"testing"

	"cardforge/modules/cards"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAttrs(t *testing.T) {
	attrs := []map[string]any{
		{"label": "Age", "value": "25"},
		{"label": "Height", "value": "170cm", "isVisible": true},
		{"label": "Secret", "value": "hidden", "isVisible": false},
		{"label": "", "value": "no label"},
		{"label": "no value", "value": ""},
	}

	assert.Equal(t, "[Age: 25]\n[Height: 170cm]", FormatAttrs(attrs, true))
	assert.Equal(t, "[Age: 25]\n[Height: 170cm]\n[Secret: hidden]", FormatAttrs(attrs, false))
	assert.Equal(t, "", FormatAttrs(nil, true))
}

func TestExtractGreetingsPriority(t *testing.T) {
	// pre-split alternates win
	first, alts := ExtractGreetings(map[string]any{
		"firstMes":            "hello",
		"alternate_greetings": []any{"alt one", "alt two"},
		"prologue":            map[string]any{"greetings": []any{"ignored"}},
	})
	assert.Equal(t, "hello", first)
	assert.Equal(t, []string{"alt one", "alt two"}, alts)

	// prologue greetings, firstMes missing: first value promotes
	html := `<p style="color:red">greeting <b>html</b></p>`
	first, alts = ExtractGreetings(map[string]any{
		"prologue": map[string]any{"greetings": []any{
			map[string]any{"value": html},
			"second greeting",
		}},
	})
	assert.Equal(t, html, first)
	assert.Equal(t, []string{"second greeting"}, alts)

	// prologue greetings with firstMes present: all become alternates
	first, alts = ExtractGreetings(map[string]any{
		"firstMes": "hi",
		"prologue": map[string]any{"greetings": []any{"a", "b"}},
	})
	assert.Equal(t, "hi", first)
	assert.Equal(t, []string{"a", "b"}, alts)

	first, alts = ExtractGreetings(map[string]any{"firstMes": "only"})
	assert.Equal(t, "only", first)
	assert.Empty(t, alts)
}

func TestMapLorebookEntryConstantKeepsEmptyKeys(t *testing.T) {
	entry := MapLorebookEntry(map[string]any{
		"constant": true,
		"content":  "always injected",
		"name":     "Background",
	}, 0)

	assert.Empty(t, entry.Keys)
	require.NotNil(t, entry.Constant)
	assert.True(t, *entry.Constant)
}

func TestMapLorebookEntryNameFallback(t *testing.T) {
	entry := MapLorebookEntry(map[string]any{
		"content": "some lore",
		"name":    "The Kingdom",
	}, 0)

	assert.Equal(t, []string{"The Kingdom"}, entry.Keys)
}

func TestMapLorebookEntrySelective(t *testing.T) {
	with := MapLorebookEntry(map[string]any{
		"keywords":      []any{"king"},
		"secondaryKeys": []any{"castle"},
	}, 0)
	require.NotNil(t, with.Selective)
	assert.True(t, *with.Selective)
	assert.Equal(t, []string{"castle"}, with.SecondaryKeys)

	without := MapLorebookEntry(map[string]any{
		"keywords": []any{"king"},
	}, 0)
	require.NotNil(t, without.Selective)
	assert.False(t, *without.Selective)
}

func TestMapLorebookEntryPosition(t *testing.T) {
	before := MapLorebookEntry(map[string]any{"keywords": []any{"k"}, "position": float64(0)}, 0)
	require.NotNil(t, before.Position)
	assert.Equal(t, "before_char", *before.Position)

	after := MapLorebookEntry(map[string]any{"keywords": []any{"k"}, "position": float64(1)}, 2)
	require.NotNil(t, after.Position)
	assert.Equal(t, "after_char", *after.Position)
	assert.Equal(t, 3, after.InsertionOrder)
	assert.Equal(t, 3, after.ID)
}

func TestMapLorebookEntryExtensions(t *testing.T) {
	entry := MapLorebookEntry(map[string]any{
		"keywords":        []any{"k"},
		"matchWholeWords": true,
		"scanDepth":       float64(30),
		"depth":           float64(4),
		"role":            "system",
	}, 0)

	assert.Equal(t, true, entry.Extensions["match_whole_words"])
	assert.Equal(t, float64(30), entry.Extensions["scan_depth"])
	assert.Equal(t, float64(4), entry.Extensions["depth"])
	assert.Equal(t, "system", entry.Extensions["role"])
}

func TestMapLorebook(t *testing.T) {
	book := MapLorebook([]map[string]any{
		{"keywords": []any{"a"}, "content": "one"},
		{"keywords": []any{"b"}, "content": "two"},
	}, "My Lore")

	assert.Equal(t, "My Lore", book.Name)
	require.NotNil(t, book.ScanDepth)
	assert.Equal(t, 50, *book.ScanDepth)
	require.NotNil(t, book.TokenBudget)
	assert.Equal(t, 500, *book.TokenBudget)
	require.Len(t, book.Entries, 2)
	assert.Equal(t, 1, book.Entries[0].InsertionOrder)
	assert.Equal(t, 2, book.Entries[1].InsertionOrder)
}

func TestMapToV3(t *testing.T) {
	info := map[string]any{
		"name":  "fallback name",
		"intro": "A mysterious wanderer.",
		"charList": []any{
			map[string]any{
				"name": "Aria",
				"attrs": []any{
					map[string]any{"label": "Age", "value": "22"},
					map[string]any{"label": "Personality", "value": "curious"},
				},
			},
		},
		"firstMes":         "Hello there.",
		"authorName":       "someone",
		"charCreatorNotes": "notes here",
		"tags":             []any{"fantasy"},
	}

	card := MapToV3(info, []map[string]any{
		{"keywords": []any{"aria"}, "content": "lore"},
	})

	assert.Equal(t, "Aria", card.Data.Name)
	assert.Equal(t, "A mysterious wanderer.\n\n[Age: 22]\n[Personality: curious]", card.Data.Description)
	assert.Equal(t, "curious", card.Data.Personality)
	assert.Equal(t, "Hello there.", card.Data.FirstMes)
	assert.Equal(t, "someone", card.Data.Creator)
	assert.Equal(t, "notes here", card.Data.CreatorNotes)
	assert.Equal(t, []string{"QuackAI", "fantasy"}, card.Data.Tags)
	require.NotNil(t, card.Data.CharacterBook)
	assert.Len(t, card.Data.CharacterBook.Entries, 1)
	require.Len(t, card.Data.Assets, 1)
	assert.Equal(t, "ccdefault:", card.Data.Assets[0].URI)
	assert.NotNil(t, card.Data.CreationDate)
	assert.Equal(t, cards.SpecV3, card.Spec)
}

func TestMapToV3InlineCharacterbooks(t *testing.T) {
	info := map[string]any{
		"name": "Solo",
		"characterbooks": []any{
			map[string]any{"entryList": []any{
				map[string]any{"keywords": []any{"x"}, "content": "inline lore"},
			}},
		},
	}

	card := MapToV3(info, nil)
	require.NotNil(t, card.Data.CharacterBook)
	require.Len(t, card.Data.CharacterBook.Entries, 1)
	assert.Equal(t, "inline lore", card.Data.CharacterBook.Entries[0].Content)
}

func TestMapToV3Defaults(t *testing.T) {
	card := MapToV3(map[string]any{}, nil)

	assert.Equal(t, "Unknown", card.Data.Name)
	assert.Equal(t, []string{"QuackAI"}, card.Data.Tags)
	assert.Nil(t, card.Data.CharacterBook)
	assert.Equal(t, "1.0", card.Data.CharacterVersion)
}
