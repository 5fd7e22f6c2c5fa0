package png

// Character card chunk keywords, newest schema first.
const (
	KeywordCCv3  = "ccv3"
	KeywordChara = "chara"
)

func decodeAnyTextChunk(chunk Chunk) (string, string, bool) {
	switch chunk.Type {
	case "tEXt":
		return decodeTextChunk(chunk.Data)
	case "iTXt":
		return decodeITXtChunk(chunk.Data)
	case "zTXt":
		return decodeZTXtChunk(chunk.Data)
	}

	return "", "", false
}

// ReadTextChunks decodes every text chunk of the three kinds into one
// keyword -> text mapping, stream order, last write wins. Returns nil when
// the data is not a PNG or carries no readable text chunk; unreadable
// individual chunks are skipped, they never fail the whole read.
func ReadTextChunks(data []byte) map[string]string {
	chunks, err := ParseChunks(data)
	if err != nil {
		return nil
	}

	result := make(map[string]string)
	for _, chunk := range chunks {
		if keyword, text, ok := decodeAnyTextChunk(chunk); ok {
			result[keyword] = text
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// InjectTextChunk writes a tEXt chunk carrying keyword/text into the PNG.
// With replace set, the first tEXt chunk decoding to the same keyword is
// swapped in place; otherwise the new chunk goes right before IEND (or at
// the end when IEND is missing). Every other chunk is copied through
// byte-identical — IDAT is never touched.
func InjectTextChunk(data []byte, keyword, text string, replace bool) ([]byte, error) {
	chunks, err := ParseChunks(data)
	if err != nil {
		return nil, err
	}

	newData := EncodeTextChunkData(keyword, text)

	out := make([]Chunk, 0, len(chunks)+1)
	replaced := false

	for _, chunk := range chunks {
		if replace && !replaced && chunk.Type == "tEXt" {
			if k, _, ok := decodeTextChunk(chunk.Data); ok && k == keyword {
				out = append(out, Chunk{Type: "tEXt", Data: newData})
				replaced = true
				continue
			}
		}

		out = append(out, chunk)
	}

	if !replaced {
		iend := -1
		for i, chunk := range out {
			if chunk.Type == "IEND" {
				iend = i
				break
			}
		}

		newChunk := Chunk{Type: "tEXt", Data: newData}
		if iend != -1 {
			out = append(out[:iend], append([]Chunk{newChunk}, out[iend:]...)...)
		} else {
			out = append(out, newChunk)
		}
	}

	return BuildPNG(out), nil
}

// RemoveTextChunk drops every text chunk (all three kinds) whose decoded
// keyword matches.
func RemoveTextChunk(data []byte, keyword string) ([]byte, error) {
	chunks, err := ParseChunks(data)
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if k, _, ok := decodeAnyTextChunk(chunk); ok && k == keyword {
			continue
		}

		out = append(out, chunk)
	}

	return BuildPNG(out), nil
}

// GetCardData extracts the embedded character card, preferring the ccv3
// chunk over the legacy chara chunk.
func GetCardData(data []byte) (string, string, bool) {
	chunks := ReadTextChunks(data)
	if chunks == nil {
		return "", "", false
	}

	if text, ok := chunks[KeywordCCv3]; ok {
		return KeywordCCv3, text, true
	}

	if text, ok := chunks[KeywordChara]; ok {
		return KeywordChara, text, true
	}

	return "", "", false
}
