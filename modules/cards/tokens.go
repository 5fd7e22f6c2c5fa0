package cards

import (
	"fmt"
	"strings"
	"unicode"
)

/*
	Token estimation without a tokenizer dependency. CJK text tokenizes far
	denser than latin text, so the two are weighted separately:

		tokens = cjk_runes / 0.7 + other_runes / 4
*/

// Warning levels relative to the token budget.
const (
	TokenWarningNone   = ""
	TokenWarningSoft   = "warning" // >= 70% of budget
	TokenWarningDanger = "danger"  // >= 90% of budget

	DefaultTokenBudget = 8000
)

var cjkTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3000, Hi: 0x303f, Stride: 1}, // CJK symbols and punctuation
		{Lo: 0x3040, Hi: 0x309f, Stride: 1}, // hiragana
		{Lo: 0x30a0, Hi: 0x30ff, Stride: 1}, // katakana
		{Lo: 0x3400, Hi: 0x4dbf, Stride: 1}, // CJK extension A
		{Lo: 0x4e00, Hi: 0x9fff, Stride: 1}, // CJK unified ideographs
		{Lo: 0xac00, Hi: 0xd7af, Stride: 1}, // hangul
		{Lo: 0xf900, Hi: 0xfaff, Stride: 1}, // CJK compatibility ideographs
		{Lo: 0xff00, Hi: 0xffef, Stride: 1}, // fullwidth forms
	},
}

// EstimateTokens estimates the token count of a text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	var cjk, other int
	for _, r := range text {
		if unicode.Is(cjkTable, r) {
			cjk++
		} else {
			other++
		}
	}

	return int(float64(cjk)/0.7 + float64(other)/4)
}

// EstimateLorebookTokens sums tokens over the enabled entries, keyed by
// entry id (or entry_<index> when the entry has none). Keys count toward
// an entry because they end up in the prompt alongside the content.
func EstimateLorebookTokens(lorebook *Lorebook) (int, map[string]int) {
	breakdown := make(map[string]int)
	if lorebook == nil || len(lorebook.Entries) == 0 {
		return 0, breakdown
	}

	total := 0
	for i, entry := range lorebook.Entries {
		if !entry.Enabled {
			continue
		}

		tokens := EstimateTokens(entry.Content)
		if len(entry.Keys) > 0 {
			tokens += EstimateTokens(strings.Join(entry.Keys, " "))
		}
		if len(entry.SecondaryKeys) > 0 {
			tokens += EstimateTokens(strings.Join(entry.SecondaryKeys, " "))
		}

		id := fmt.Sprintf("entry_%d", i)
		if entry.ID != nil {
			id = entryID(entry.ID)
		}

		breakdown[id] = tokens
		total += tokens
	}

	return total, breakdown
}

func entryID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// EstimateCardTokens breaks the estimate down per field. Empty fields are
// left out; the "total" key sums everything.
func EstimateCardTokens(card *CharacterCardV3) map[string]int {
	data := card.Data
	breakdown := make(map[string]int)

	fields := []struct {
		name  string
		value string
	}{
		{"name", data.Name},
		{"description", data.Description},
		{"first_mes", data.FirstMes},
		{"personality", data.Personality},
		{"scenario", data.Scenario},
		{"mes_example", data.MesExample},
		{"system_prompt", data.SystemPrompt},
		{"post_history_instructions", data.PostHistoryInstructions},
		{"creator_notes", data.CreatorNotes},
	}

	for _, field := range fields {
		if field.value != "" {
			breakdown[field.name] = EstimateTokens(field.value)
		}
	}

	if len(data.AlternateGreetings) > 0 {
		total := 0
		for _, greeting := range data.AlternateGreetings {
			total += EstimateTokens(greeting)
		}
		breakdown["alternate_greetings"] = total
	}

	if len(data.GroupOnlyGreetings) > 0 {
		total := 0
		for _, greeting := range data.GroupOnlyGreetings {
			total += EstimateTokens(greeting)
		}
		breakdown["group_only_greetings"] = total
	}

	if data.CharacterBook != nil {
		total, _ := EstimateLorebookTokens(data.CharacterBook)
		breakdown["character_book"] = total
	}

	total := 0
	for _, tokens := range breakdown {
		total += tokens
	}
	breakdown["total"] = total

	return breakdown
}

// TokenWarningLevel grades a token count against a budget.
func TokenWarningLevel(current, budget int) string {
	if budget <= 0 {
		return TokenWarningNone
	}

	percentage := float64(current) / float64(budget) * 100

	switch {
	case percentage >= 90:
		return TokenWarningDanger
	case percentage >= 70:
		return TokenWarningSoft
	default:
		return TokenWarningNone
	}
}
