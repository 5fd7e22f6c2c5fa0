package cards

import (
	"bytes"
	"encoding/json"

	"cardforge/modules/png"

	"github.com/pkg/errors"
)

// ErrImport wraps every card import failure.
var ErrImport = errors.New("card import failed")

// DetectFileType sniffs the upload: "png", "json" or "image" (a non-PNG
// image format).
func DetectFileType(data []byte) string {
	if bytes.HasPrefix(data, png.Signature) {
		return "png"
	}

	if bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}) {
		return "image" // JPEG
	}
	if bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image"
	}
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image"
	}
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image"
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "json"
	}

	return "image"
}

// ImportJSON parses card JSON of either generation and normalizes it to V3.
// The returned format says what came in: FormatV3 for a spec-tagged V3
// card, FormatV2 for anything that had to be migrated.
func ImportJSON(data []byte) (*CharacterCardV3, string, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, "", errors.Wrapf(ErrImport, "invalid json: %v", err)
	}

	if jsonString(root["spec"]) == SpecV3 {
		if _, ok := root["data"]; !ok {
			return nil, "", errors.Wrap(ErrImport, "v3 card missing data field")
		}

		var card CharacterCardV3
		if err := json.Unmarshal(data, &card); err != nil {
			return nil, "", errors.Wrapf(ErrImport, "invalid v3 card structure: %v", err)
		}

		card.Spec = SpecV3
		card.SpecVersion = SpecVersionV3
		return &card, FormatV3, nil
	}

	_, hasName := root["name"]
	if IsV2Format(data) || hasName {
		card, err := MigrateV2ToV3(data)
		if err != nil {
			return nil, "", err
		}
		return card, FormatV2, nil
	}

	return nil, "", errors.Wrap(ErrImport, "unrecognized card format: missing spec or name field")
}

// ImportPNG pulls the embedded card out of a PNG, preferring the ccv3 chunk
// over the legacy chara chunk. A card found in a ccv3 chunk counts as V3
// even when its JSON body lacks the spec marker.
func ImportPNG(data []byte) (*CharacterCardV3, string, error) {
	keyword, text, ok := png.GetCardData(data)
	if !ok {
		if !bytes.HasPrefix(data, png.Signature) {
			return nil, "", errors.Wrap(ErrImport, "invalid png file")
		}
		return nil, "", errors.Wrap(ErrImport, "png contains no character card data")
	}

	card, format, err := ImportJSON([]byte(text))
	if err != nil {
		return nil, "", err
	}

	if keyword == png.KeywordCCv3 && format == FormatV2 {
		format = FormatV3
	}

	return card, format, nil
}

// ImportCard imports from any supported upload. hasImage reports whether
// the input carried pixel data usable as the card's image.
func ImportCard(data []byte) (card *CharacterCardV3, format string, hasImage bool, err error) {
	switch DetectFileType(data) {
	case "json":
		card, format, err = ImportJSON(data)
		return card, format, false, err
	case "image":
		return nil, "", false, errors.Wrap(ErrImport, "unsupported image format, only png can carry card data")
	default:
		card, format, err = ImportPNG(data)
		return card, format, true, err
	}
}
