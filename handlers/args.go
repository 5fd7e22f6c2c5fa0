package handlers

import (
	"fmt"
	"os"

	forgehttp "cardforge/http"
	"cardforge/modules/cards"
)

func HandleArgs(args []string) {
	switch args[0] {
	case "help":
		fmt.Println("Usage: cardforge [version|inspect]")
		fmt.Println("version - Print version and exit")
		fmt.Println("inspect <file> - Parse a card file and print a summary")
		os.Exit(0)
	case "version":
		fmt.Printf("%s %s\n", forgehttp.AppName, forgehttp.AppVersion)
		os.Exit(0)
	case "inspect":
		if len(args) < 2 {
			fmt.Println("Usage: cardforge inspect <file>")
			os.Exit(1)
		}

		content, err := os.ReadFile(args[1])
		if err != nil {
			fmt.Printf("failed to read %s: %v\n", args[1], err)
			os.Exit(1)
		}

		card, format, hasImage, err := cards.ImportCard(content)
		if err != nil {
			fmt.Printf("failed to parse card: %v\n", err)
			os.Exit(1)
		}

		printCardInfo(card, format, hasImage)
		os.Exit(0)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func printCardInfo(card *cards.CharacterCardV3, format string, hasImage bool) {
	breakdown := cards.EstimateCardTokens(card)

	fmt.Printf("Name: %s\n", card.Data.Name)
	fmt.Printf("Creator: %s\n", card.Data.Creator)
	fmt.Printf("Source format: %s\n", format)
	fmt.Printf("Has image: %v\n", hasImage)
	fmt.Printf("Estimated tokens: %d\n", breakdown["total"])

	if card.Data.CharacterBook != nil {
		fmt.Printf("Lorebook entries: %d\n", len(card.Data.CharacterBook.Entries))
	}
}
