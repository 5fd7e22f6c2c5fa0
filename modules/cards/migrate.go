package cards

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// IsV2Format reports whether raw card JSON is a legacy V2 card. A V3 spec
// marker anywhere (root or nested data object) rules V2 out; otherwise the
// presence of a name field is the tell.
func IsV2Format(raw []byte) bool {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return false
	}

	if jsonString(root["spec"]) == SpecV3 {
		return false
	}
	if jsonString(root["spec_version"]) == SpecVersionV3 {
		return false
	}

	if nested, ok := root["data"]; ok && isJSONObject(nested) {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(nested, &data); err == nil {
			if jsonString(data["spec"]) == SpecV3 {
				return false
			}
			if _, ok := data["name"]; ok {
				return true
			}
		}
	}

	_, ok := root["name"]
	return ok
}

// MigrateV2ToV3 lifts a legacy V2 card (flat, or already wrapped in a data
// object) into the V3 structure. Known fields map across directly, unknown
// fields ride along in the extra maps, and missing fields get V3 defaults.
func MigrateV2ToV3(raw []byte) (*CharacterCardV3, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, errors.Wrapf(ErrImport, "invalid card json: %v", err)
	}

	source := json.RawMessage(raw)
	if nested, ok := root["data"]; ok && isJSONObject(nested) {
		source = nested
	}

	var data CardData
	if err := json.Unmarshal(source, &data); err != nil {
		return nil, errors.Wrapf(ErrImport, "card migration failed: %v", err)
	}

	data.Assets = migrateAssets(source)

	return &CharacterCardV3{
		Spec:        SpecV3,
		SpecVersion: SpecVersionV3,
		Data:        data,
	}, nil
}

// migrateAssets rebuilds the asset list from the raw source so that fields
// the V2 card left out get their spec defaults. Non-object entries and
// vendor extras on individual assets are dropped, like the V2 tools do.
func migrateAssets(source json.RawMessage) []Asset {
	var probe struct {
		Assets []json.RawMessage `json:"assets"`
	}
	if err := json.Unmarshal(source, &probe); err != nil || len(probe.Assets) == 0 {
		return nil
	}

	var assets []Asset
	for _, raw := range probe.Assets {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}

		assets = append(assets, Asset{
			Type: jsonStringDefault(fields["type"], "icon"),
			URI:  jsonStringDefault(fields["uri"], "ccdefault:"),
			Name: jsonStringDefault(fields["name"], "main"),
			Ext:  jsonStringDefault(fields["ext"], "png"),
		})
	}

	return assets
}

func jsonString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func jsonStringDefault(raw json.RawMessage, fallback string) string {
	if raw == nil {
		return fallback
	}
	return jsonString(raw)
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
