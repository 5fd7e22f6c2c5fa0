package forgehttp

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cardforge/modules/cards"

	"github.com/valyala/fasthttp"
)

type parseResult struct {
	Card         *cards.CharacterCardV3 `json:"card"`
	SourceFormat string                 `json:"source_format"`
	HasImage     bool                   `json:"has_image"`
	Warnings     []string               `json:"warnings"`
}

type validateResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type tokenEstimate struct {
	TotalTokens int            `json:"total_tokens"`
	Breakdown   map[string]int `json:"breakdown"`
}

// readUpload pulls the "file" field out of a multipart form and enforces
// the upload cap. A nil return means the error response is already written.
func readUpload(ctx *fasthttp.RequestCtx) []byte {
	header, err := ctx.FormFile("file")
	if err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "Missing file upload", CodeValidationError)
		return nil
	}

	if header.Size > maxUploadBytes {
		respondError(ctx, fasthttp.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large. Maximum size is %dMB", maxUploadBytes/(1024*1024)), CodeFileTooLarge)
		return nil
	}

	file, err := header.Open()
	if err != nil {
		respondError(ctx, fasthttp.StatusInternalServerError, "Failed to read upload", CodeInternalError)
		return nil
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(ctx, fasthttp.StatusInternalServerError, "Failed to read upload", CodeInternalError)
		return nil
	}

	return content
}

func CardsParse(ctx *fasthttp.RequestCtx) {
	content := readUpload(ctx)
	if content == nil {
		return
	}

	card, sourceFormat, hasImage, err := cards.ImportCard(content)
	if err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, err.Error(), CodeParseError)
		return
	}

	warnings := []string{}
	if sourceFormat == cards.FormatV2 {
		warnings = append(warnings, "Card was in V2 format and has been migrated to V3")
	}

	breakdown := cards.EstimateCardTokens(card)
	if breakdown["total"] > cards.DefaultTokenBudget {
		warnings = append(warnings, fmt.Sprintf(
			"Card has %d estimated tokens, which may exceed context limits", breakdown["total"]))
	}

	respondData(ctx, parseResult{
		Card:         card,
		SourceFormat: sourceFormat,
		HasImage:     hasImage,
		Warnings:     warnings,
	})
}

func CardsInject(ctx *fasthttp.RequestCtx) {
	content := readUpload(ctx)
	if content == nil {
		return
	}

	cardJSON := ctx.FormValue("card_v3_json")
	if len(cardJSON) == 0 {
		respondError(ctx, fasthttp.StatusBadRequest, "Missing card_v3_json field", CodeValidationError)
		return
	}

	var card cards.CharacterCardV3
	if err := json.Unmarshal(cardJSON, &card); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), CodeValidationError)
		return
	}

	includeV2Compat := formBool(ctx, "include_v2_compat", true)
	verify := formBool(ctx, "verify", true)

	resultPNG, err := cards.ExportPNG(content, &card, includeV2Compat, true)
	if err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, err.Error(), CodeInvalidFormat)
		return
	}

	if verify {
		if err := cards.VerifyExport(resultPNG, &card, false); err != nil {
			respondError(ctx, fasthttp.StatusInternalServerError,
				fmt.Sprintf("Export verification failed: %v", err), CodeInternalError)
			return
		}
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.Header.SetContentType("image/png")
	ctx.Response.Header.Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, cards.ExportFilename(&card)))
	ctx.SetBody(resultPNG)
}

func CardsValidate(ctx *fasthttp.RequestCtx) {
	var card cards.CharacterCardV3
	if err := json.Unmarshal(ctx.PostBody(), &card); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), CodeValidationError)
		return
	}

	errs := []string{}
	warnings := []string{}

	if strings.TrimSpace(card.Data.Name) == "" {
		errs = append(errs, "Character name is required")
	}

	if card.Data.FirstMes == "" && len(card.Data.AlternateGreetings) == 0 {
		warnings = append(warnings, "Card has no greeting messages (first_mes or alternate_greetings)")
	}

	if card.Data.Description == "" {
		warnings = append(warnings, "Card has no description")
	}

	breakdown := cards.EstimateCardTokens(&card)
	totalTokens := breakdown["total"]
	if totalTokens > 12000 {
		errs = append(errs, fmt.Sprintf(
			"Card has %d estimated tokens, which exceeds recommended maximum of 12000", totalTokens))
	} else if totalTokens > cards.DefaultTokenBudget {
		warnings = append(warnings, fmt.Sprintf(
			"Card has %d estimated tokens, which may exceed context limits", totalTokens))
	}

	if card.Data.CharacterBook != nil {
		for i, entry := range card.Data.CharacterBook.Entries {
			constant := entry.Constant != nil && *entry.Constant
			if !constant && len(entry.Keys) == 0 {
				warnings = append(warnings, fmt.Sprintf("Lorebook entry %d has no keys and is not constant", i))
			}
			if entry.Content == "" {
				warnings = append(warnings, fmt.Sprintf("Lorebook entry %d has empty content", i))
			}
		}
	}

	respondData(ctx, validateResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	})
}

func CardsTokens(ctx *fasthttp.RequestCtx) {
	var card cards.CharacterCardV3
	if err := json.Unmarshal(ctx.PostBody(), &card); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), CodeValidationError)
		return
	}

	breakdown := cards.EstimateCardTokens(&card)

	respondData(ctx, tokenEstimate{
		TotalTokens: breakdown["total"],
		Breakdown:   breakdown,
	})
}

func formBool(ctx *fasthttp.RequestCtx, key string, defaultValue bool) bool {
	value := string(ctx.FormValue(key))
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
