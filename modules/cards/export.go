package cards

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"cardforge/modules/png"

	"github.com/pkg/errors"
)

// ErrExport wraps every card export failure.
var ErrExport = errors.New("card export failed")

// Fields V2-era frontends choke on. Stripped from the chara compatibility
// chunk, never from the ccv3 chunk.
var v2StrippedFields = []string{
	"group_only_greetings",
	"nickname",
	"creator_notes_multilingual",
	"source",
	"creation_date",
	"modification_date",
}

func prepareV3JSON(card *CharacterCardV3, updateModificationDate bool) ([]byte, error) {
	b, err := json.Marshal(card)
	if err != nil {
		return nil, err
	}

	if !updateModificationDate {
		return b, nil
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, err
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(root["data"], &data); err != nil {
		return nil, err
	}

	now, _ := json.Marshal(time.Now().Unix())
	data["modification_date"] = now

	if root["data"], err = json.Marshal(data); err != nil {
		return nil, err
	}

	return json.Marshal(root)
}

// prepareV2JSON flattens the card to the legacy shape: data fields at the
// root, V3-only fields dropped.
func prepareV2JSON(card *CharacterCardV3) ([]byte, error) {
	b, err := json.Marshal(card.Data)
	if err != nil {
		return nil, err
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}

	for _, field := range v2StrippedFields {
		delete(data, field)
	}

	return json.Marshal(data)
}

// ExportPNG embeds the card into the PNG as a ccv3 tEXt chunk, plus a
// legacy chara chunk when includeV2Compat is set. Pixel data passes
// through untouched.
func ExportPNG(pngData []byte, card *CharacterCardV3, includeV2Compat, updateModificationDate bool) ([]byte, error) {
	v3JSON, err := prepareV3JSON(card, updateModificationDate)
	if err != nil {
		return nil, errors.Wrapf(ErrExport, "%v", err)
	}

	out, err := png.InjectTextChunk(pngData, png.KeywordCCv3, string(v3JSON), true)
	if err != nil {
		return nil, errors.Wrapf(ErrExport, "%v", err)
	}

	if includeV2Compat {
		v2JSON, err := prepareV2JSON(card)
		if err != nil {
			return nil, errors.Wrapf(ErrExport, "%v", err)
		}

		out, err = png.InjectTextChunk(out, png.KeywordChara, string(v2JSON), true)
		if err != nil {
			return nil, errors.Wrapf(ErrExport, "%v", err)
		}
	}

	return out, nil
}

// VerifyExport re-imports the exported PNG and checks it against the
// original. Non-strict checks the key fields; strict compares everything
// except the modification date.
func VerifyExport(exported []byte, original *CharacterCardV3, strict bool) error {
	reimported, _, err := ImportPNG(exported)
	if err != nil {
		return errors.Wrapf(ErrExport, "re-import failed: %v", err)
	}

	if reimported.Data.Name != original.Data.Name {
		return errors.Wrapf(ErrExport, "name mismatch: %q vs %q", original.Data.Name, reimported.Data.Name)
	}
	if reimported.Data.FirstMes != original.Data.FirstMes {
		return errors.Wrap(ErrExport, "first_mes content mismatch")
	}
	if reimported.Data.Description != original.Data.Description {
		return errors.Wrap(ErrExport, "description content mismatch")
	}

	if strict {
		a, err := comparableCard(original)
		if err != nil {
			return errors.Wrapf(ErrExport, "%v", err)
		}
		b, err := comparableCard(reimported)
		if err != nil {
			return errors.Wrapf(ErrExport, "%v", err)
		}

		if !reflect.DeepEqual(a, b) {
			return errors.Wrap(ErrExport, "strict comparison mismatch")
		}
	}

	return nil
}

func comparableCard(card *CharacterCardV3) (map[string]any, error) {
	b, err := json.Marshal(card)
	if err != nil {
		return nil, err
	}

	var root map[string]any
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, err
	}

	if data, ok := root["data"].(map[string]any); ok {
		delete(data, "modification_date")
	}

	return root, nil
}

// ExportFilename builds a {Name}_{Date}_{Time}.png filename with the name
// sanitized down to filesystem-safe characters.
func ExportFilename(card *CharacterCardV3) string {
	name := card.Data.Name
	if name == "" {
		name = "character"
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_ ", r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	safe := []rune(strings.TrimSpace(b.String()))
	if len(safe) > 50 {
		safe = safe[:50]
	}

	return fmt.Sprintf("%s_%s.png", string(safe), time.Now().Format("20060102_150405"))
}
