package domain

import "strings"

// Symbols have the form "BASE/QUOTE". Malformed symbols degrade to
// empty-string currency codes instead of failing, so a single bad market
// cannot abort a scan.

func BaseOf(symbol string) string {
	base, _, ok := strings.Cut(symbol, "/")
	if !ok {
		return ""
	}
	return base
}

func QuoteOf(symbol string) string {
	_, quote, ok := strings.Cut(symbol, "/")
	if !ok {
		return ""
	}
	return quote
}
