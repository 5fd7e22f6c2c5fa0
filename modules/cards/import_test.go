package cards

import (
	"encoding/json"
	"strings"
	"testing"

	"cardforge/modules/png"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardPNG(textChunks map[string]string) []byte {
	chunks := []png.Chunk{
		{Type: "IHDR", Data: []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}},
		{Type: "IDAT", Data: []byte{0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00, 0xff, 0xff}},
	}
	for keyword, text := range textChunks {
		chunks = append(chunks, png.Chunk{Type: "tEXt", Data: png.EncodeTextChunkData(keyword, text)})
	}
	chunks = append(chunks, png.Chunk{Type: "IEND"})

	return png.BuildPNG(chunks)
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, "png", DetectFileType(cardPNG(nil)))
	assert.Equal(t, "json", DetectFileType([]byte(`  {"name": "x"}`)))
	assert.Equal(t, "json", DetectFileType([]byte(`[1, 2]`)))
	assert.Equal(t, "image", DetectFileType([]byte{0xff, 0xd8, 0xff, 0xe0}))
	assert.Equal(t, "image", DetectFileType([]byte("GIF89a....")))
	assert.Equal(t, "image", DetectFileType([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.Equal(t, "image", DetectFileType([]byte("BM....")))
	assert.Equal(t, "image", DetectFileType([]byte("random bytes")))
}

func TestImportJSONV3(t *testing.T) {
	card, format, err := ImportJSON([]byte(`{
		"spec": "chara_card_v3",
		"spec_version": "3.0",
		"data": {"name": "Alice", "vendor_field": 7}
	}`))
	require.NoError(t, err)

	assert.Equal(t, FormatV3, format)
	assert.Equal(t, "Alice", card.Data.Name)
	assert.Contains(t, card.Data.Extra, "vendor_field")
}

func TestImportJSONV3MissingData(t *testing.T) {
	_, _, err := ImportJSON([]byte(`{"spec": "chara_card_v3"}`))
	assert.ErrorIs(t, err, ErrImport)
}

func TestImportJSONV2(t *testing.T) {
	card, format, err := ImportJSON([]byte(`{"name": "Bob", "personality": "gruff"}`))
	require.NoError(t, err)

	assert.Equal(t, FormatV2, format)
	assert.Equal(t, "Bob", card.Data.Name)
	assert.Equal(t, "gruff", card.Data.Personality)
	assert.Equal(t, SpecV3, card.Spec)
}

func TestImportJSONUnrecognized(t *testing.T) {
	_, _, err := ImportJSON([]byte(`{"foo": 1}`))
	assert.ErrorIs(t, err, ErrImport)

	_, _, err = ImportJSON([]byte(`broken`))
	assert.ErrorIs(t, err, ErrImport)
}

func TestImportPNGPrefersCCv3(t *testing.T) {
	data := cardPNG(map[string]string{
		"ccv3":  `{"spec": "chara_card_v3", "data": {"name": "V3 Alice"}}`,
		"chara": `{"name": "V2 Alice"}`,
	})

	card, format, err := ImportPNG(data)
	require.NoError(t, err)
	assert.Equal(t, FormatV3, format)
	assert.Equal(t, "V3 Alice", card.Data.Name)
}

func TestImportPNGCCv3ChunkImpliesV3(t *testing.T) {
	// card body without a spec marker still counts as V3 in a ccv3 chunk
	data := cardPNG(map[string]string{"ccv3": `{"name": "Alice"}`})

	_, format, err := ImportPNG(data)
	require.NoError(t, err)
	assert.Equal(t, FormatV3, format)
}

func TestImportPNGLegacyChara(t *testing.T) {
	data := cardPNG(map[string]string{"chara": `{"name": "Old Bob"}`})

	card, format, err := ImportPNG(data)
	require.NoError(t, err)
	assert.Equal(t, FormatV2, format)
	assert.Equal(t, "Old Bob", card.Data.Name)
}

func TestImportPNGErrors(t *testing.T) {
	_, _, err := ImportPNG([]byte("not a png"))
	assert.ErrorIs(t, err, ErrImport)

	_, _, err = ImportPNG(cardPNG(nil))
	assert.ErrorIs(t, err, ErrImport)
}

func TestImportCard(t *testing.T) {
	card, format, hasImage, err := ImportCard([]byte(`{"name": "Bob"}`))
	require.NoError(t, err)
	assert.Equal(t, FormatV2, format)
	assert.False(t, hasImage)
	assert.Equal(t, "Bob", card.Data.Name)

	_, format, hasImage, err = ImportCard(cardPNG(map[string]string{"ccv3": `{"name": "Alice"}`}))
	require.NoError(t, err)
	assert.Equal(t, FormatV3, format)
	assert.True(t, hasImage)

	_, _, _, err = ImportCard([]byte{0xff, 0xd8, 0xff, 0xe0})
	assert.ErrorIs(t, err, ErrImport)
}

func TestExportPNGRoundTrip(t *testing.T) {
	original, _, err := ImportJSON([]byte(`{
		"spec": "chara_card_v3",
		"spec_version": "3.0",
		"data": {
			"name": "Alice",
			"description": "an alice",
			"first_mes": "hello",
			"vendor_field": {"nested": true}
		}
	}`))
	require.NoError(t, err)

	exported, err := ExportPNG(cardPNG(nil), original, true, true)
	require.NoError(t, err)

	require.NoError(t, VerifyExport(exported, original, false))
	require.NoError(t, VerifyExport(exported, original, true))

	reimported, format, err := ImportPNG(exported)
	require.NoError(t, err)
	assert.Equal(t, FormatV3, format)
	assert.Equal(t, "Alice", reimported.Data.Name)
	assert.Contains(t, reimported.Data.Extra, "vendor_field")
	assert.NotNil(t, reimported.Data.ModificationDate)
}

func TestExportPNGV2CompatStripsV3Fields(t *testing.T) {
	original, _, err := ImportJSON([]byte(`{
		"spec": "chara_card_v3",
		"spec_version": "3.0",
		"data": {
			"name": "Alice",
			"nickname": "Al",
			"group_only_greetings": ["yo"],
			"source": ["import://somewhere"]
		}
	}`))
	require.NoError(t, err)

	exported, err := ExportPNG(cardPNG(nil), original, true, false)
	require.NoError(t, err)

	texts := png.ReadTextChunks(exported)
	require.Contains(t, texts, "chara")

	var v2 map[string]any
	require.NoError(t, json.Unmarshal([]byte(texts["chara"]), &v2))

	assert.Equal(t, "Alice", v2["name"])
	for _, field := range v2StrippedFields {
		assert.NotContains(t, v2, field)
	}
}

func TestExportPNGWithoutV2Compat(t *testing.T) {
	original, _, err := ImportJSON([]byte(`{"spec": "chara_card_v3", "data": {"name": "Alice"}}`))
	require.NoError(t, err)

	exported, err := ExportPNG(cardPNG(nil), original, false, false)
	require.NoError(t, err)

	texts := png.ReadTextChunks(exported)
	assert.Contains(t, texts, "ccv3")
	assert.NotContains(t, texts, "chara")
}

func TestVerifyExportDetectsMismatch(t *testing.T) {
	original, _, err := ImportJSON([]byte(`{"spec": "chara_card_v3", "data": {"name": "Alice"}}`))
	require.NoError(t, err)

	exported, err := ExportPNG(cardPNG(nil), original, false, false)
	require.NoError(t, err)

	other, _, err := ImportJSON([]byte(`{"spec": "chara_card_v3", "data": {"name": "Mallory"}}`))
	require.NoError(t, err)

	assert.ErrorIs(t, VerifyExport(exported, other, false), ErrExport)
}

func TestExportFilename(t *testing.T) {
	card, _, err := ImportJSON([]byte(`{"spec": "chara_card_v3", "data": {"name": "Al/ice: test"}}`))
	require.NoError(t, err)

	name := ExportFilename(card)
	assert.True(t, strings.HasPrefix(name, "Al_ice_ test_"), name)
	assert.True(t, strings.HasSuffix(name, ".png"), name)

	card.Data.Name = ""
	assert.True(t, strings.HasPrefix(ExportFilename(card), "character_"))
}
