package png

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(extra ...Chunk) []byte {
	chunks := []Chunk{
		{Type: "IHDR", Data: []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}},
		{Type: "IDAT", Data: []byte{0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00, 0xff, 0xff}},
	}
	chunks = append(chunks, extra...)
	chunks = append(chunks, Chunk{Type: "IEND"})

	return BuildPNG(chunks)
}

func textChunk(keyword, text string) Chunk {
	return Chunk{Type: "tEXt", Data: EncodeTextChunkData(keyword, text)}
}

func deflate(t *testing.T, text string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func idatHash(t *testing.T, data []byte) [32]byte {
	t.Helper()

	idat, err := ExtractIDAT(data)
	require.NoError(t, err)
	require.NotEmpty(t, idat)

	h := sha256.New()
	for _, d := range idat {
		h.Write(d)
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func TestParseChunksRejectsBadSignature(t *testing.T) {
	_, err := ParseChunks([]byte("definitely not a png"))
	assert.ErrorIs(t, err, ErrInvalidPNG)

	_, err = ParseChunks([]byte{0x89, 'P'})
	assert.ErrorIs(t, err, ErrInvalidPNG)
}

func TestParseChunksTruncatedStream(t *testing.T) {
	data := testPNG(textChunk("ccv3", "payload"))

	// cut into the middle of the text chunk
	chunks, err := ParseChunks(data[:len(data)-30])
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.NotEqual(t, "IEND", chunk.Type)
	}
}

func TestParseChunksIgnoresTrailingGarbage(t *testing.T) {
	data := testPNG(textChunk("ccv3", "payload"))
	withGarbage := append(append([]byte{}, data...), []byte("trailing garbage bytes")...)

	clean, err := ParseChunks(data)
	require.NoError(t, err)
	dirty, err := ParseChunks(withGarbage)
	require.NoError(t, err)

	assert.Equal(t, clean, dirty)
}

func TestBuildPNGRoundTrip(t *testing.T) {
	data := testPNG(textChunk("chara", "legacy"))

	chunks, err := ParseChunks(data)
	require.NoError(t, err)

	assert.Equal(t, data, BuildPNG(chunks))
}

func TestEncodeDecodeInverse(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"ascii", "plain text"},
		{"unicode", "日本語のテキスト — ünïcödé ✓"},
		{"embedded nul", "before\x00after"},
		{"newlines", "line one\nline two\r\nline three"},
		{"empty", ""},
		{"json payload", `{"spec":"chara_card_v3","data":{"name":"Alice"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keyword, text, ok := decodeTextChunk(EncodeTextChunkData("ccv3", tc.text))
			require.True(t, ok)
			assert.Equal(t, "ccv3", keyword)
			assert.Equal(t, tc.text, text)
		})
	}
}

func TestDecodeTextChunkRawFallback(t *testing.T) {
	// producers that do not base64-encode still have to be readable
	raw := append([]byte("chara\x00"), []byte(`{"name":"Bob"}`)...)

	keyword, text, ok := decodeTextChunk(raw)
	require.True(t, ok)
	assert.Equal(t, "chara", keyword)
	assert.Equal(t, `{"name":"Bob"}`, text)
}

func TestDecodeTextChunkMissingNul(t *testing.T) {
	_, _, ok := decodeTextChunk([]byte("no delimiter here"))
	assert.False(t, ok)
}

func TestDecodeZTXtChunk(t *testing.T) {
	data := append([]byte("ccv3\x00\x00"), deflate(t, "compressed text")...)

	keyword, text, ok := decodeZTXtChunk(data)
	require.True(t, ok)
	assert.Equal(t, "ccv3", keyword)
	assert.Equal(t, "compressed text", text)

	_, _, ok = decodeZTXtChunk([]byte("ccv3\x00\x00not zlib at all"))
	assert.False(t, ok)
}

func TestDecodeITXtChunk(t *testing.T) {
	plain := []byte("ccv3\x00\x00\x00en\x00translated\x00international text")
	keyword, text, ok := decodeITXtChunk(plain)
	require.True(t, ok)
	assert.Equal(t, "ccv3", keyword)
	assert.Equal(t, "international text", text)

	compressed := append([]byte("ccv3\x00\x01\x00en\x00\x00"), deflate(t, "inflated text")...)
	keyword, text, ok = decodeITXtChunk(compressed)
	require.True(t, ok)
	assert.Equal(t, "ccv3", keyword)
	assert.Equal(t, "inflated text", text)

	_, _, ok = decodeITXtChunk([]byte("ccv3\x00\x01\x00en"))
	assert.False(t, ok)
}

func TestReadTextChunksMergesAllKinds(t *testing.T) {
	ztxt := Chunk{Type: "zTXt", Data: append([]byte("compressed\x00\x00"), deflate(t, "z-value")...)}
	itxt := Chunk{Type: "iTXt", Data: []byte("international\x00\x00\x00\x00\x00i-value")}

	data := testPNG(textChunk("plain", "t-value"), ztxt, itxt)

	result := ReadTextChunks(data)
	require.NotNil(t, result)
	assert.Equal(t, "t-value", result["plain"])
	assert.Equal(t, "z-value", result["compressed"])
	assert.Equal(t, "i-value", result["international"])
}

func TestReadTextChunksLastWriteWins(t *testing.T) {
	data := testPNG(textChunk("ccv3", "first"), textChunk("ccv3", "second"))

	result := ReadTextChunks(data)
	require.NotNil(t, result)
	assert.Equal(t, "second", result["ccv3"])
}

func TestReadTextChunksNilCases(t *testing.T) {
	assert.Nil(t, ReadTextChunks([]byte("not a png")))
	assert.Nil(t, ReadTextChunks(testPNG()))
}

func TestInjectPreservesOtherChunks(t *testing.T) {
	data := testPNG()
	before := idatHash(t, data)

	// repeated injections must never drift the pixel data
	var err error
	for i := 0; i < 3; i++ {
		data, err = InjectTextChunk(data, "ccv3", `{"round":`+string(rune('0'+i))+`}`, true)
		require.NoError(t, err)
	}

	assert.Equal(t, before, idatHash(t, data))

	chunks, err := ParseChunks(data)
	require.NoError(t, err)
	assert.Equal(t, "IEND", chunks[len(chunks)-1].Type)
}

func TestInjectReplaceIdempotent(t *testing.T) {
	data := testPNG()

	data, err := InjectTextChunk(data, "ccv3", "first version", true)
	require.NoError(t, err)
	data, err = InjectTextChunk(data, "ccv3", "second version", true)
	require.NoError(t, err)

	chunks, err := ParseChunks(data)
	require.NoError(t, err)

	count := 0
	for _, chunk := range chunks {
		if chunk.Type != "tEXt" {
			continue
		}
		keyword, text, ok := decodeTextChunk(chunk.Data)
		require.True(t, ok)
		if keyword == "ccv3" {
			count++
			assert.Equal(t, "second version", text)
		}
	}

	assert.Equal(t, 1, count)
}

func TestInjectKeepsChunkPosition(t *testing.T) {
	data := testPNG(textChunk("ccv3", "original"))

	chunksBefore, err := ParseChunks(data)
	require.NoError(t, err)

	data, err = InjectTextChunk(data, "ccv3", "replaced", true)
	require.NoError(t, err)

	chunksAfter, err := ParseChunks(data)
	require.NoError(t, err)
	require.Len(t, chunksAfter, len(chunksBefore))

	for i, chunk := range chunksAfter {
		assert.Equal(t, chunksBefore[i].Type, chunk.Type)
	}
}

func TestInjectWithoutIENDAppends(t *testing.T) {
	data := BuildPNG([]Chunk{{Type: "IHDR", Data: []byte{0}}})

	data, err := InjectTextChunk(data, "ccv3", "appended", true)
	require.NoError(t, err)

	chunks, err := ParseChunks(data)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "tEXt", chunks[1].Type)
}

func TestInjectInvalidInput(t *testing.T) {
	_, err := InjectTextChunk([]byte("nope"), "ccv3", "text", true)
	assert.ErrorIs(t, err, ErrInvalidPNG)
}

func TestRemoveTextChunk(t *testing.T) {
	ztxt := Chunk{Type: "zTXt", Data: append([]byte("ccv3\x00\x00"), deflate(t, "z")...)}
	data := testPNG(textChunk("ccv3", "v3"), textChunk("chara", "v2"), ztxt)

	data, err := RemoveTextChunk(data, "ccv3")
	require.NoError(t, err)

	result := ReadTextChunks(data)
	require.NotNil(t, result)
	assert.NotContains(t, result, "ccv3")
	assert.Equal(t, "v2", result["chara"])
}

func TestGetCardDataPriority(t *testing.T) {
	both := testPNG(textChunk("chara", "legacy card"), textChunk("ccv3", "v3 card"))
	tag, text, ok := GetCardData(both)
	require.True(t, ok)
	assert.Equal(t, KeywordCCv3, tag)
	assert.Equal(t, "v3 card", text)

	legacyOnly := testPNG(textChunk("chara", "legacy card"))
	tag, text, ok = GetCardData(legacyOnly)
	require.True(t, ok)
	assert.Equal(t, KeywordChara, tag)
	assert.Equal(t, "legacy card", text)

	_, _, ok = GetCardData(testPNG())
	assert.False(t, ok)
}

func TestEncodedPayloadIsBase64(t *testing.T) {
	data := EncodeTextChunkData("ccv3", "text with\nnewline")

	nul := bytes.IndexByte(data, 0)
	require.NotEqual(t, -1, nul)

	decoded, err := base64.StdEncoding.DecodeString(string(data[nul+1:]))
	require.NoError(t, err)
	assert.Equal(t, "text with\nnewline", string(decoded))
}
