package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cardforge/modules/db"
)

func Cards(model *Model) {
	parts := strings.Fields(model.TextInput.Value())
	if len(parts) < 2 {
		model.Output += "Usage: cards <list|find|delete> [args]\n"
		model.Output += "  cards list - List all stored cards\n"
		model.Output += "  cards find <name> - Find cards by name\n"
		model.Output += "  cards delete <id> - Delete a card\n"
		return
	}

	switch parts[1] {
	case "list":
		records, err := db.ListCards()
		if err != nil {
			model.Output += fmt.Sprintf("Failed to list cards: %v\n", err)
			return
		}

		printCardList(model, records)
	case "find":
		if len(parts) < 3 {
			model.Output += "Usage: cards find <name>\n"
			return
		}

		records, err := db.FindCardsByName(strings.Join(parts[2:], " "))
		if err != nil {
			model.Output += fmt.Sprintf("Failed to find cards: %v\n", err)
			return
		}

		printCardList(model, records)
	case "delete":
		if len(parts) < 3 {
			model.Output += "Usage: cards delete <id>\n"
			return
		}

		id, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			model.Output += fmt.Sprintf("Invalid card id: %s\n", parts[2])
			return
		}

		if err := db.DeleteCard(id); err != nil {
			model.Output += fmt.Sprintf("Failed to delete card: %v\n", err)
			return
		}

		model.Output += fmt.Sprintf("Deleted card %d\n", id)
	default:
		model.Output += fmt.Sprintf("Unknown subcommand: %s\n", parts[1])
	}
}

func printCardList(model *Model, records []*db.CardRecord) {
	if len(records) == 0 {
		model.Output += "No cards stored\n"
		return
	}

	for _, record := range records {
		name := record.Name
		if name == "" {
			name = "Unnamed"
		}

		model.Output += fmt.Sprintf("  %d  %s (%s, updated %s)\n",
			record.ID, name, record.Format,
			time.UnixMilli(record.UpdatedAt).Format("2006-01-02 15:04:05"))
	}
}
