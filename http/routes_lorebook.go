package forgehttp

import (
	"encoding/json"
	"fmt"
	"strings"

	"cardforge/modules/cards"

	"github.com/valyala/fasthttp"
)

type lorebookExportRequest struct {
	Card *cards.CharacterCardV3 `json:"card"`
}

type lorebookExportResult struct {
	Lorebook   *cards.Lorebook `json:"lorebook"`
	EntryCount int             `json:"entry_count"`
}

type lorebookImportRequest struct {
	Card      *cards.CharacterCardV3 `json:"card"`
	Lorebook  *cards.Lorebook        `json:"lorebook"`
	MergeMode string                 `json:"merge_mode"`
}

type lorebookImportResult struct {
	Card         *cards.CharacterCardV3 `json:"card"`
	EntriesAdded int                    `json:"entries_added"`
}

func LorebookExport(ctx *fasthttp.RequestCtx) {
	var request lorebookExportRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil || request.Card == nil {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid request body", CodeValidationError)
		return
	}

	book := request.Card.Data.CharacterBook
	if book == nil {
		book = &cards.Lorebook{Entries: []cards.LorebookEntry{}}
	}

	respondData(ctx, lorebookExportResult{
		Lorebook:   book,
		EntryCount: len(book.Entries),
	})
}

// LorebookImport merges a lorebook into a card. Merge modes:
// replace overwrites, merge appends entries with unseen ids, skip keeps an
// existing non-empty book untouched.
func LorebookImport(ctx *fasthttp.RequestCtx) {
	var request lorebookImportRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil || request.Card == nil || request.Lorebook == nil {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid request body", CodeValidationError)
		return
	}

	mergeMode := strings.ToLower(request.MergeMode)
	if mergeMode == "" {
		mergeMode = "replace"
	}

	card := request.Card
	newLorebook := request.Lorebook
	existingBook := card.Data.CharacterBook
	entriesAdded := 0

	switch mergeMode {
	case "replace":
		card.Data.CharacterBook = newLorebook
		entriesAdded = len(newLorebook.Entries)

	case "merge":
		if existingBook == nil {
			card.Data.CharacterBook = newLorebook
			entriesAdded = len(newLorebook.Entries)
			break
		}

		existingIDs := make(map[any]struct{})
		for _, entry := range existingBook.Entries {
			if entry.ID != nil {
				existingIDs[entry.ID] = struct{}{}
			}
		}

		for _, entry := range newLorebook.Entries {
			if entry.ID != nil {
				if _, seen := existingIDs[entry.ID]; seen {
					continue
				}
			}
			existingBook.Entries = append(existingBook.Entries, entry)
			entriesAdded++
		}

	case "skip":
		if existingBook == nil || len(existingBook.Entries) == 0 {
			card.Data.CharacterBook = newLorebook
			entriesAdded = len(newLorebook.Entries)
		}

	default:
		respondError(ctx, fasthttp.StatusBadRequest,
			fmt.Sprintf("Invalid merge_mode: %s. Must be 'replace', 'merge', or 'skip'.", mergeMode),
			CodeValidationError)
		return
	}

	respondData(ctx, lorebookImportResult{
		Card:         card,
		EntriesAdded: entriesAdded,
	})
}
