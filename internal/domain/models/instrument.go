package models

import (
	"fmt"
	"strings"
)

// NormalizeSymbol uppercases and trims a raw ticker. Listing-style class
// separators ("BRK.B") use the provider dash form ("BRK-B"); exchange
// suffixes such as ".NS" are kept.
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, '.'); i > 0 {
		if _, ok := exchangeSuffixes[s[i:]]; !ok {
			s = strings.ReplaceAll(s, ".", "-")
		}
	}
	return s
}

// NormalizeSymbols normalizes and de-duplicates, keeping first-seen order.
func NormalizeSymbols(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s := NormalizeSymbol(r)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

var exchangeSuffixes = map[string]struct{}{
	".NS": {},
	".BO": {},
	".L":  {},
	".TO": {},
	".HK": {},
	".DE": {},
}

// Region groups instruments by the market session they trade in.
type Region string

const (
	RegionUS     Region = "US"
	RegionIN     Region = "IN"
	RegionCrypto Region = "CRYPTO"
)

// ParseRegion accepts a region name in any case.
func ParseRegion(s string) (Region, error) {
	switch r := Region(strings.ToUpper(strings.TrimSpace(s))); r {
	case RegionUS, RegionIN, RegionCrypto:
		return r, nil
	default:
		return "", fmt.Errorf("unknown region %q", s)
	}
}

// RegionOf derives the region from the exchange suffix, or CRYPTO when the
// symbol mentions USD, BTC or ETH anywhere (USDINR=X included).
func RegionOf(symbol string) Region {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(s, ".NS"), strings.HasSuffix(s, ".BO"):
		return RegionIN
	case strings.Contains(s, "USD"), strings.Contains(s, "BTC"), strings.Contains(s, "ETH"):
		return RegionCrypto
	default:
		return RegionUS
	}
}
