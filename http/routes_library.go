package forgehttp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"cardforge/modules/cards"
	"cardforge/modules/db"
	"cardforge/modules/env"
	"cardforge/modules/snowflake"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

var (
	idGenerator     *snowflake.Snowflake
	idGeneratorOnce sync.Once
)

func nextCardID() uint64 {
	idGeneratorOnce.Do(func() {
		machineID, _ := strconv.ParseInt(env.GetEnv("MACHINE_ID", "0"), 10, 64)

		var err error
		idGenerator, err = snowflake.NewSnowflake(machineID)
		if err != nil {
			service.FatalLog(fmt.Sprintf("invalid MACHINE_ID: %v", err))
		}
	})

	return idGenerator.GenerateID()
}

type librarySaveRequest struct {
	Card      *cards.CharacterCardV3 `json:"card"`
	Format    string                 `json:"format"`
	PNGBase64 string                 `json:"png_base64"`
}

type libraryEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Format    string `json:"format"`
	HasImage  bool   `json:"has_image"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type libraryCard struct {
	libraryEntry
	Card      json.RawMessage `json:"card"`
	PNGBase64 string          `json:"png_base64,omitempty"`
}

func libraryEntryFromRecord(record *db.CardRecord) libraryEntry {
	name := record.Name
	if name == "" {
		name = "Unnamed"
	}

	return libraryEntry{
		ID:        strconv.FormatUint(record.ID, 10),
		Name:      name,
		Format:    record.Format,
		HasImage:  len(record.PNG) > 0,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func LibraryList(ctx *fasthttp.RequestCtx) {
	var records []*db.CardRecord
	var err error

	if name := string(ctx.QueryArgs().Peek("name")); name != "" {
		records, err = db.FindCardsByName(name)
	} else {
		records, err = db.ListCards()
	}

	if err != nil {
		service.ErrorLog(fmt.Sprintf("library list failed: %v", err))
		respondError(ctx, fasthttp.StatusInternalServerError, "Failed to list cards", CodeInternalError)
		return
	}

	entries := make([]libraryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, libraryEntryFromRecord(record))
	}

	respondData(ctx, entries)
}

func libraryID(ctx *fasthttp.RequestCtx) (uint64, bool) {
	raw := string(ctx.QueryArgs().Peek("id"))
	if raw == "" {
		raw = string(ctx.FormValue("id"))
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid or missing card id", CodeValidationError)
		return 0, false
	}

	return id, true
}

func LibraryGet(ctx *fasthttp.RequestCtx) {
	id, ok := libraryID(ctx)
	if !ok {
		return
	}

	record, err := db.GetCard(id)
	if err != nil {
		if errors.Is(err, db.ErrCardNotFound) {
			respondError(ctx, fasthttp.StatusNotFound, "Card not found", CodeValidationError)
			return
		}

		service.ErrorLog(fmt.Sprintf("library get failed: %v", err))
		respondError(ctx, fasthttp.StatusInternalServerError, "Failed to load card", CodeInternalError)
		return
	}

	result := libraryCard{
		libraryEntry: libraryEntryFromRecord(record),
		Card:         record.Card,
	}
	if len(record.PNG) > 0 {
		result.PNGBase64 = base64.StdEncoding.EncodeToString(record.PNG)
	}

	respondData(ctx, result)
}

func LibrarySave(ctx *fasthttp.RequestCtx) {
	var request librarySaveRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil || request.Card == nil {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid request body", CodeValidationError)
		return
	}

	cardJSON, err := json.Marshal(request.Card)
	if err != nil {
		respondError(ctx, fasthttp.StatusInternalServerError, "Failed to encode card", CodeInternalError)
		return
	}

	var pngData []byte
	if request.PNGBase64 != "" {
		pngData, err = base64.StdEncoding.DecodeString(request.PNGBase64)
		if err != nil {
			respondError(ctx, fasthttp.StatusBadRequest, "Invalid png_base64", CodeValidationError)
			return
		}
		if int64(len(pngData)) > maxUploadBytes {
			respondError(ctx, fasthttp.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large. Maximum size is %dMB", maxUploadBytes/(1024*1024)), CodeFileTooLarge)
			return
		}
	}

	format := request.Format
	if format == "" {
		format = cards.FormatV3
	}

	record := &db.CardRecord{
		ID:     nextCardID(),
		Name:   request.Card.Data.Name,
		Format: format,
		Card:   cardJSON,
		PNG:    pngData,
	}

	if err := db.SaveCard(record); err != nil {
		service.ErrorLog(fmt.Sprintf("library save failed: %v", err))
		respondError(ctx, fasthttp.StatusInternalServerError, "Failed to save card", CodeInternalError)
		return
	}

	respondData(ctx, libraryEntryFromRecord(record))
}

func LibraryDelete(ctx *fasthttp.RequestCtx) {
	id, ok := libraryID(ctx)
	if !ok {
		return
	}

	if err := db.DeleteCard(id); err != nil {
		if errors.Is(err, db.ErrCardNotFound) {
			respondError(ctx, fasthttp.StatusNotFound, "Card not found", CodeValidationError)
			return
		}

		service.ErrorLog(fmt.Sprintf("library delete failed: %v", err))
		respondError(ctx, fasthttp.StatusInternalServerError, "Failed to delete card", CodeInternalError)
		return
	}

	respondData(ctx, map[string]bool{"deleted": true})
}
