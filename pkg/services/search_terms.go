package services

import (
	"slices"
	"strings"
)

// businessTerms maps a business concept to related words a table or column
// might be named after instead.
var businessTerms = []struct {
	term    string
	related []string
}{
	{"spend", []string{"expense", "cost", "payment", "budget", "transaction", "purchase"}},
	{"customer", []string{"client", "buyer", "consumer", "purchaser", "user", "account"}},
	{"sales", []string{"revenue", "income", "earnings", "profit", "transaction"}},
	{"product", []string{"item", "merchandise", "goods", "offering", "commodity"}},
	{"employee", []string{"staff", "personnel", "worker", "associate", "team member"}},
	{"marketing", []string{"advertising", "promotion", "campaign", "branding"}},
	{"finance", []string{"accounting", "treasury", "budget", "fiscal", "monetary"}},
	{"inventory", []string{"stock", "supply", "goods", "merchandise", "assets"}},
	{"order", []string{"purchase", "transaction", "requisition", "booking"}},
	{"shipping", []string{"delivery", "transport", "logistics", "freight", "fulfillment"}},
}

// ExpandBusinessTerms returns the words related to every business concept
// that occurs in text, in a stable order and without repeats. Words already
// present in text are left out.
func ExpandBusinessTerms(text string) []string {
	lower := strings.ToLower(text)
	var expanded []string
	for _, bt := range businessTerms {
		if !strings.Contains(lower, bt.term) {
			continue
		}
		for _, r := range bt.related {
			if strings.Contains(lower, r) || slices.Contains(expanded, r) {
				continue
			}
			expanded = append(expanded, r)
		}
	}
	return expanded
}
