package snapshot

import (
	"sort"
	"strings"
)

// tradeAliases maps generic substance names to the trade names and
// colloquial abbreviations customers actually type at the counter.
// When an item name contains a generic, its aliases are appended to the
// row's search text so short queries like "pcm" still match.
//
// The table is static; extending it only requires a refresh (backfill)
// to re-derive search_text.
var tradeAliases = map[string][]string{
	"paracetamol":   {"panadol", "calpol", "pcm", "acetaminophen"},
	"acetaminophen": {"panadol", "tylenol", "paracetamol"},
	"ibuprofen":     {"brufen", "advil", "nurofen", "ibu"},
	"amoxicillin":   {"amoxil", "augmentin", "amox"},
	"omeprazole":    {"losec", "prilosec", "omz"},
	"metformin":     {"glucophage", "met"},
	"amlodipine":    {"norvasc", "amlo"},
	"atorvastatin":  {"lipitor", "ator"},
	"salbutamol":    {"ventolin", "albuterol"},
	"cetirizine":    {"zyrtec", "cet"},
	"loratadine":    {"claritin", "lora"},
	"diclofenac":    {"voltaren", "diclo"},
	"azithromycin":  {"zithromax", "azithro", "zpack"},
	"ciprofloxacin": {"cipro"},
	"ranitidine":    {"zantac"},
	"aspirin":       {"asa", "disprin"},
}

// BuildSearchText derives the lowercased match target of a snapshot row
// from its descriptive fields. Deterministic: the same inputs always
// yield the same text, which keeps refresh idempotent.
func BuildSearchText(name, sku, barcode string) string {
	parts := make([]string, 0, 4)

	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered != "" {
		parts = append(parts, lowered)
	}
	if s := strings.ToLower(strings.TrimSpace(sku)); s != "" {
		parts = append(parts, s)
	}
	if b := strings.ToLower(strings.TrimSpace(barcode)); b != "" {
		parts = append(parts, b)
	}

	// Sorted iteration keeps the text deterministic across refreshes.
	generics := make([]string, 0, len(tradeAliases))
	for generic := range tradeAliases {
		generics = append(generics, generic)
	}
	sort.Strings(generics)

	for _, generic := range generics {
		if strings.Contains(lowered, generic) {
			parts = append(parts, tradeAliases[generic]...)
		}
	}

	return strings.Join(parts, " ")
}
