// Package symbols folds exchange-specific instrument spellings into one
// canonical key so readings from different venues can be merged.
package symbols

import "strings"

// aliases maps legacy base-coin tickers onto their common spelling.
var aliases = map[string]string{
	"XBT": "BTC",
}

// quoteSuffixes are stripped from the end of a symbol, longest first so that
// USDTM (KuCoin futures) wins over USDT.
var quoteSuffixes = []string{
	"SWAP",
	"PERP",
	"USDTM",
	"USDT",
	"USDC",
	"BUSD",
	"USD",
}

// Fold converts an exchange-native instrument name to the canonical key used
// for cross-exchange grouping.
//
//	1000PEPEUSDT -> PEPE
//	PEPE-PERP    -> PEPE
//	BTC-USDT-SWAP -> BTC
//	kPEPE        -> PEPE
//	XBTUSDTM     -> BTC
func Fold(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// Hyperliquid spells multiplier contracts with a lowercase 'k' prefix.
	if len(s) > 1 && s[0] == 'k' && s[1] >= 'A' && s[1] <= 'Z' {
		s = s[1:]
	}

	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "_", "-")

	for {
		trimmed := trimQuoteOnce(s)
		if trimmed == s {
			break
		}
		s = trimmed
	}

	// 1000PEPE style multiplier prefixes, occasionally stacked (1000000).
	for strings.HasPrefix(s, "1000") && len(s) > 4 {
		s = strings.TrimPrefix(s, "1000")
		s = strings.TrimPrefix(s, "000")
	}
	s = strings.TrimPrefix(s, "-")

	if base, ok := aliases[s]; ok {
		return base
	}
	return s
}

func trimQuoteOnce(s string) string {
	for _, suffix := range quoteSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			s = strings.TrimSuffix(s, suffix)
			s = strings.TrimSuffix(s, "-")
			return s
		}
	}
	return s
}
