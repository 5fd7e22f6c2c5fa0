package png

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"io"
	"strings"
	"unicode/utf8"
)

// decodeTextChunk decodes a tEXt chunk (keyword\0text). The payload is
// tried as base64-encoded UTF-8 first; anything that fails that path is
// taken as raw text with invalid sequences replaced, so this never reports
// a chunk unreadable.
func decodeTextChunk(data []byte) (string, string, bool) {
	nul := bytes.IndexByte(data, 0)
	if nul == -1 {
		return "", "", false
	}

	keyword := latin1(data[:nul])
	payload := data[nul+1:]

	if decoded, err := base64.StdEncoding.DecodeString(string(payload)); err == nil && utf8.Valid(decoded) {
		return keyword, string(decoded), true
	}

	return keyword, strings.ToValidUTF8(string(payload), "�"), true
}

// decodeZTXtChunk decodes a zTXt chunk (keyword\0method\0zlib-data). Only
// compression method 0 exists; a bad zlib stream or non-UTF-8 result marks
// the chunk unreadable.
func decodeZTXtChunk(data []byte) (string, string, bool) {
	nul := bytes.IndexByte(data, 0)
	if nul == -1 {
		return "", "", false
	}

	keyword := latin1(data[:nul])
	if nul+1 >= len(data) {
		return "", "", false
	}

	text, ok := inflate(data[nul+2:])
	if !ok || !utf8.ValidString(text) {
		return "", "", false
	}

	return keyword, text, true
}

// decodeITXtChunk decodes an iTXt chunk. The compression method, language
// tag and translated keyword fields are skipped; the text is inflated when
// the compression flag is set and decoded as UTF-8 with replacement.
func decodeITXtChunk(data []byte) (string, string, bool) {
	nul := bytes.IndexByte(data, 0)
	if nul == -1 {
		return "", "", false
	}

	keyword := latin1(data[:nul])
	rest := data[nul+1:]

	if len(rest) < 2 {
		return "", "", false
	}

	compressed := rest[0] == 1
	rest = rest[2:]

	langEnd := bytes.IndexByte(rest, 0)
	if langEnd == -1 {
		return "", "", false
	}
	rest = rest[langEnd+1:]

	transEnd := bytes.IndexByte(rest, 0)
	if transEnd == -1 {
		return "", "", false
	}
	text := rest[transEnd+1:]

	if compressed {
		inflated, ok := inflate(text)
		if !ok {
			return "", "", false
		}
		return keyword, strings.ToValidUTF8(inflated, "�"), true
	}

	return keyword, strings.ToValidUTF8(string(text), "�"), true
}

// EncodeTextChunkData builds tEXt chunk data. The text is always written as
// standard base64 over UTF-8, which keeps NULs and newlines out of the
// chunk framing. iTXt and zTXt are read for compatibility but never written.
func EncodeTextChunkData(keyword, text string) []byte {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))

	data := make([]byte, 0, len(keyword)+1+len(encoded))
	data = append(data, keyword...)
	data = append(data, 0)
	data = append(data, encoded...)

	return data
}

func inflate(data []byte) (string, bool) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}

	return string(out), true
}

// latin1 maps every byte to the equivalent rune, the PNG keyword charset.
func latin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
