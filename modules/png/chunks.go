package png

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
)

/*
	PNG Signature -> 137 80 78 71 13 10 26 10 (8 Bytes)
	PNG Chunk -> Length (4 Bytes) + Type (4 Bytes) + Data (Length Bytes) + CRC (4 Bytes)

	Text chunk types:
		- tEXt: Textual data (keyword\0text)
		- zTXt: Compressed textual data (keyword\0 + method byte + zlib-data)
		- iTXt: International text (keyword\0 + flag byte + method byte + lang\0translated\0text)

	Big Endian -> left to right
*/

var (
	Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

	ErrInvalidPNG = errors.New("not a valid PNG file: invalid signature")
)

type Chunk struct {
	Type string
	Data []byte
}

// ParseChunks walks the chunk stream starting after the signature. Chunk
// CRCs are read but never validated; a stream truncated mid-chunk yields the
// chunks fully contained before the cut, and anything past IEND is ignored.
func ParseChunks(data []byte) ([]Chunk, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], Signature) {
		return nil, ErrInvalidPNG
	}

	var chunks []Chunk
	pos := 8

	for pos < len(data) {
		if pos+8 > len(data) {
			break
		}

		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		chunkType := string(data[pos+4 : pos+8])

		if pos+12+length > len(data) {
			break
		}

		chunks = append(chunks, Chunk{Type: chunkType, Data: data[pos+8 : pos+8+length]})
		pos += 12 + length

		if chunkType == "IEND" {
			break
		}
	}

	return chunks, nil
}

// BuildPNG re-emits the signature and every chunk with a freshly computed
// CRC over type||data. Input CRCs are never trusted on re-emit. The chunk
// sequence is written as given, no reordering and no structural validation.
func BuildPNG(chunks []Chunk) []byte {
	size := 8
	for _, chunk := range chunks {
		size += 12 + len(chunk.Data)
	}

	out := make([]byte, 0, size)
	out = append(out, Signature...)

	var scratch [4]byte
	for _, chunk := range chunks {
		binary.BigEndian.PutUint32(scratch[:], uint32(len(chunk.Data)))
		out = append(out, scratch[:]...)
		out = append(out, chunk.Type...)
		out = append(out, chunk.Data...)

		crc := crc32.NewIEEE()
		crc.Write([]byte(chunk.Type))
		crc.Write(chunk.Data)
		binary.BigEndian.PutUint32(scratch[:], crc.Sum32())
		out = append(out, scratch[:]...)
	}

	return out
}

// ExtractIDAT returns the raw compressed pixel data chunks, used to verify
// that injections never touch the image.
func ExtractIDAT(data []byte) ([][]byte, error) {
	chunks, err := ParseChunks(data)
	if err != nil {
		return nil, err
	}

	var idat [][]byte
	for _, chunk := range chunks {
		if chunk.Type == "IDAT" {
			idat = append(idat, chunk.Data)
		}
	}

	return idat, nil
}
