package forgehttp

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/url"
	"strings"

	"cardforge/modules/cards"
	"cardforge/modules/png"
	"cardforge/modules/quack"
	"cardforge/modules/security"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

type quackImportRequest struct {
	QuackInput   string `json:"quack_input"`
	Cookies      string `json:"cookies"`
	Mode         string `json:"mode"`
	OutputFormat string `json:"output_format"`
}

type quackImportResult struct {
	Card      *cards.CharacterCardV3 `json:"card,omitempty"`
	Lorebook  *cards.Lorebook        `json:"lorebook,omitempty"`
	PNGBase64 string                 `json:"png_base64,omitempty"`
	Source    string                 `json:"source"`
	Warnings  []string               `json:"warnings"`
}

type quackPreviewRequest struct {
	QuackInput string `json:"quack_input"`
	Cookies    string `json:"cookies"`
}

type quackPreviewResult struct {
	Name          string   `json:"name"`
	Creator       string   `json:"creator"`
	Intro         string   `json:"intro"`
	Tags          []string `json:"tags"`
	AttrCount     int      `json:"attr_count"`
	LorebookCount int      `json:"lorebook_count"`
	Source        string   `json:"source"`
}

// tryParseJSON accepts pasted character data: a JSON object, nothing else.
func tryParseJSON(input string) map[string]any {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "{") {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(input), &data); err != nil {
		return nil
	}

	return data
}

func pastedLorebookEntries(data map[string]any) []map[string]any {
	var entries []map[string]any

	books, _ := data["characterbooks"].([]any)
	for _, book := range books {
		bookMap, ok := book.(map[string]any)
		if !ok {
			continue
		}

		entryList, _ := bookMap["entryList"].([]any)
		for _, entry := range entryList {
			if entryMap, ok := entry.(map[string]any); ok {
				entries = append(entries, entryMap)
			}
		}
	}

	return entries
}

func newQuackClient(cookieInput string, warnings *[]string) *quack.Client {
	cookies := map[string]string{}
	if cookieInput != "" {
		cookies = quack.ParseCookies(cookieInput)
		if len(cookies) == 0 && warnings != nil {
			*warnings = append(*warnings, "Cookie parsing failed, trying unauthenticated request")
		}
	}

	client := quack.NewClient(cookies, quackFetchPolicy())
	if quackBaseURL != "" {
		client.BaseURL = quackBaseURL
	}

	return client
}

// quackFetchPolicy allows exactly the configured upstream host, nothing
// from the AI provider allowlist.
func quackFetchPolicy() *security.Policy {
	base := quackBaseURL
	if base == "" {
		base = quack.DefaultBaseURL
	}

	policy := &security.Policy{}
	if egressPolicy != nil {
		policy.AllowLocalhost = egressPolicy.AllowLocalhost
		policy.Resolver = egressPolicy.Resolver
	}

	if parsed, err := url.Parse(base); err == nil && parsed.Hostname() != "" {
		policy.Allowlist = []string{parsed.Hostname()}
	}

	return policy
}

func respondQuackError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, quack.ErrUnauthorized):
		respondError(ctx, fasthttp.StatusUnauthorized, err.Error(), CodeUnauthorized)
	case errors.Is(err, quack.ErrRateLimited):
		respondError(ctx, fasthttp.StatusTooManyRequests, err.Error(), CodeRateLimited)
	case errors.Is(err, quack.ErrTimeout):
		respondError(ctx, fasthttp.StatusGatewayTimeout, err.Error(), CodeTimeout)
	default:
		respondError(ctx, fasthttp.StatusBadGateway, err.Error(), CodeNetworkError)
	}
}

func QuackImport(ctx *fasthttp.RequestCtx) {
	var request quackImportRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil || request.QuackInput == "" {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid request body", CodeValidationError)
		return
	}

	warnings := []string{}
	source := "api"
	var quackData map[string]any
	var lorebookEntries []map[string]any

	if pasted := tryParseJSON(request.QuackInput); pasted != nil {
		source = "json"
		quackData = pasted
		warnings = append(warnings, "Using manually pasted JSON data")
		lorebookEntries = pastedLorebookEntries(pasted)
	} else {
		characterID := quack.ExtractCharacterID(request.QuackInput)
		if characterID == "" {
			respondError(ctx, fasthttp.StatusBadRequest, "Invalid character ID or URL", CodeValidationError)
			return
		}

		client := newQuackClient(request.Cookies, &warnings)

		var err error
		quackData, lorebookEntries, err = client.FetchCharacterComplete(characterID)
		if err != nil {
			respondQuackError(ctx, err)
			return
		}
	}

	if quackData == nil {
		respondError(ctx, fasthttp.StatusBadRequest, "Could not obtain character data", CodeParseError)
		return
	}

	if request.Mode == "only_lorebook" {
		if len(lorebookEntries) == 0 {
			respondError(ctx, fasthttp.StatusBadRequest, "Character has no lorebook data", CodeParseError)
			return
		}

		respondData(ctx, quackImportResult{
			Lorebook: quack.MapLorebookOnly(lorebookEntries, "Imported Lorebook"),
			Source:   source,
			Warnings: warnings,
		})
		return
	}

	card := quack.MapToV3(quackData, lorebookEntries)

	if request.OutputFormat == "png" {
		resultPNG, err := cards.ExportPNG(placeholderPNG(), card, true, true)
		if err != nil {
			respondError(ctx, fasthttp.StatusInternalServerError, err.Error(), CodeInternalError)
			return
		}

		warnings = append(warnings, "PNG generated with a placeholder image, replace it with real artwork")
		respondData(ctx, quackImportResult{
			Card:      card,
			PNGBase64: base64.StdEncoding.EncodeToString(resultPNG),
			Source:    source,
			Warnings:  warnings,
		})
		return
	}

	respondData(ctx, quackImportResult{
		Card:     card,
		Source:   source,
		Warnings: warnings,
	})
}

func QuackPreview(ctx *fasthttp.RequestCtx) {
	var request quackPreviewRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil || request.QuackInput == "" {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid request body", CodeValidationError)
		return
	}

	if pasted := tryParseJSON(request.QuackInput); pasted != nil {
		result := previewFromQuack(pasted)
		result.Source = "json"
		respondData(ctx, result)
		return
	}

	characterID := quack.ExtractCharacterID(request.QuackInput)
	if characterID == "" {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid character ID or URL", CodeValidationError)
		return
	}

	client := newQuackClient(request.Cookies, nil)

	quackData, err := client.FetchCharacterInfo(characterID)
	if err != nil {
		respondQuackError(ctx, err)
		return
	}

	result := previewFromQuack(quackData)
	result.Source = "api"

	if entries, err := client.FetchLorebook(characterID); err == nil {
		result.LorebookCount = len(entries)
	}

	respondData(ctx, result)
}

func previewFromQuack(data map[string]any) quackPreviewResult {
	char := map[string]any{}
	if charList, ok := data["charList"].([]any); ok && len(charList) > 0 {
		if first, ok := charList[0].(map[string]any); ok {
			char = first
		}
	}

	name := stringField(char, "name")
	if name == "" {
		name = stringField(data, "name")
	}
	if name == "" {
		name = "Unknown"
	}

	creator := stringField(data, "authorName")
	if creator == "" {
		creator = stringField(data, "author")
	}

	intro := stringField(data, "intro")
	if intro == "" {
		intro = stringField(char, "intro")
	}
	if runes := []rune(intro); len(runes) > 200 {
		intro = string(runes[:200])
	}

	tags := []string{}
	if raw, ok := data["tags"].([]any); ok {
		for _, tag := range raw {
			if s, ok := tag.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
	}
	if len(tags) == 0 {
		if generateImage, ok := char["generateImage"].(map[string]any); ok {
			if allTags, ok := generateImage["allTags"].([]any); ok {
				for _, tag := range allTags {
					tagMap, ok := tag.(map[string]any)
					if !ok {
						continue
					}
					label := stringField(tagMap, "label")
					if label == "" {
						label = stringField(tagMap, "value")
					}
					if label != "" {
						tags = append(tags, label)
					}
				}
			}
		}
	}
	if len(tags) > 10 {
		tags = tags[:10]
	}

	attrCount := 0
	for _, key := range []string{"attrs", "adviseAttrs", "customAttrs"} {
		if attrs, ok := char[key].([]any); ok {
			attrCount += len(attrs)
		}
	}

	lorebookCount := 0
	if books, ok := data["characterbooks"].([]any); ok {
		for _, book := range books {
			if bookMap, ok := book.(map[string]any); ok {
				if entryList, ok := bookMap["entryList"].([]any); ok {
					lorebookCount += len(entryList)
				}
			}
		}
	}

	return quackPreviewResult{
		Name:          name,
		Creator:       creator,
		Intro:         intro,
		Tags:          tags,
		AttrCount:     attrCount,
		LorebookCount: lorebookCount,
	}
}

func stringField(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

// placeholderPNG builds a 1x1 solid gray image for card exports that have
// no artwork yet.
func placeholderPNG() []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 1)
	binary.BigEndian.PutUint32(ihdr[4:8], 1)
	ihdr[8] = 8  // bit depth
	ihdr[9] = 6  // RGBA
	ihdr[10] = 0 // compression
	ihdr[11] = 0 // filter
	ihdr[12] = 0 // interlace

	var idat bytes.Buffer
	writer := zlib.NewWriter(&idat)
	writer.Write([]byte{0x00, 128, 128, 128, 255})
	writer.Close()

	return png.BuildPNG([]png.Chunk{
		{Type: "IHDR", Data: ihdr},
		{Type: "IDAT", Data: idat.Bytes()},
		{Type: "IEND", Data: nil},
	})
}
