package cards

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownFieldsSurviveRoundTrip(t *testing.T) {
	in := []byte(`{
		"spec": "chara_card_v3",
		"spec_version": "3.0",
		"vendor_root": {"a": 1},
		"data": {
			"name": "Alice",
			"vendor_data": "kept",
			"character_book": {
				"name": "book",
				"vendor_book": true,
				"entries": [
					{"keys": ["alice"], "content": "text", "vendor_entry": [1, 2]}
				]
			}
		}
	}`)

	var card CharacterCardV3
	require.NoError(t, json.Unmarshal(in, &card))

	assert.Equal(t, "Alice", card.Data.Name)
	assert.Contains(t, card.Extra, "vendor_root")
	assert.Contains(t, card.Data.Extra, "vendor_data")
	require.NotNil(t, card.Data.CharacterBook)
	assert.Contains(t, card.Data.CharacterBook.Extra, "vendor_book")
	require.Len(t, card.Data.CharacterBook.Entries, 1)
	assert.Contains(t, card.Data.CharacterBook.Entries[0].Extra, "vendor_entry")

	out, err := json.Marshal(&card)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(out, &result))

	assert.Contains(t, result, "vendor_root")
	data := result["data"].(map[string]any)
	assert.Equal(t, "kept", data["vendor_data"])
	book := data["character_book"].(map[string]any)
	assert.Equal(t, true, book["vendor_book"])
	entry := book["entries"].([]any)[0].(map[string]any)
	assert.Contains(t, entry, "vendor_entry")
}

func TestLorebookEntryDefaults(t *testing.T) {
	var entry LorebookEntry
	require.NoError(t, json.Unmarshal([]byte(`{"keys": ["k"], "content": "c"}`), &entry))

	assert.True(t, entry.Enabled)
	assert.Equal(t, 0, entry.InsertionOrder)
	assert.False(t, entry.UseRegex)
	assert.NotNil(t, entry.SecondaryKeys)
	assert.Empty(t, entry.SecondaryKeys)
	assert.Nil(t, entry.CaseSensitive)
}

func TestKnownFieldsWinOverStaleExtras(t *testing.T) {
	card := CharacterCardV3{
		Spec:        SpecV3,
		SpecVersion: SpecVersionV3,
		Data:        CardData{Name: "current"},
		Extra: map[string]json.RawMessage{
			"spec": json.RawMessage(`"stale"`),
		},
	}

	out, err := json.Marshal(&card)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, SpecV3, result["spec"])
}

func TestIsV2Format(t *testing.T) {
	assert.False(t, IsV2Format([]byte(`{"spec": "chara_card_v3", "data": {"name": "x"}}`)))
	assert.False(t, IsV2Format([]byte(`{"spec_version": "3.0"}`)))
	assert.False(t, IsV2Format([]byte(`{"data": {"spec": "chara_card_v3", "name": "x"}}`)))
	assert.False(t, IsV2Format([]byte(`{}`)))
	assert.False(t, IsV2Format([]byte(`not json`)))

	assert.True(t, IsV2Format([]byte(`{"name": "Bob"}`)))
	assert.True(t, IsV2Format([]byte(`{"data": {"name": "Bob"}}`)))
}

func TestMigrateV2ToV3(t *testing.T) {
	v2 := []byte(`{
		"name": "Bob",
		"description": "a bob",
		"first_mes": "hi",
		"char_persona": "legacy field",
		"character_book": {
			"entries": [
				{"keys": ["bob"], "content": "lore", "custom_flag": true}
			]
		},
		"assets": [{"uri": "embeded://avatar.png"}]
	}`)

	card, err := MigrateV2ToV3(v2)
	require.NoError(t, err)

	assert.Equal(t, SpecV3, card.Spec)
	assert.Equal(t, SpecVersionV3, card.SpecVersion)
	assert.Equal(t, "Bob", card.Data.Name)
	assert.Equal(t, "hi", card.Data.FirstMes)
	assert.Contains(t, card.Data.Extra, "char_persona")

	require.NotNil(t, card.Data.CharacterBook)
	require.Len(t, card.Data.CharacterBook.Entries, 1)
	entry := card.Data.CharacterBook.Entries[0]
	assert.True(t, entry.Enabled)
	assert.Contains(t, entry.Extra, "custom_flag")

	require.Len(t, card.Data.Assets, 1)
	assert.Equal(t, "icon", card.Data.Assets[0].Type)
	assert.Equal(t, "embeded://avatar.png", card.Data.Assets[0].URI)
	assert.Equal(t, "main", card.Data.Assets[0].Name)
	assert.Equal(t, "png", card.Data.Assets[0].Ext)
}

func TestMigrateV2ToV3DataWrapper(t *testing.T) {
	card, err := MigrateV2ToV3([]byte(`{"data": {"name": "Wrapped", "scenario": "s"}}`))
	require.NoError(t, err)

	assert.Equal(t, "Wrapped", card.Data.Name)
	assert.Equal(t, "s", card.Data.Scenario)
}

func TestMigrateV2ToV3InvalidJSON(t *testing.T) {
	_, err := MigrateV2ToV3([]byte(`not json`))
	assert.ErrorIs(t, err, ErrImport)
}
