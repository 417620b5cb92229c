// Package analysis extracts financial signals from article text: ticker
// symbols, named market entities, a keyword-based sentiment score, and a
// coarse market-impact class. All functions are pure and operate on plain
// strings.
package analysis

import (
	"regexp"
	"sort"
	"strings"
)

// Impact classes, from most to least market-moving.
const (
	ImpactHigh   = "HIGH"
	ImpactMedium = "MEDIUM"
	ImpactLow    = "LOW"
)

var (
	// $AAPL style cashtags: 1-5 uppercase letters, word-bounded.
	cashtagRe = regexp.MustCompile(`\$([A-Z]{1,5})\b`)

	// NYSE:BRK or NASDAQ:TSLA exchange-qualified symbols.
	exchangeRe = regexp.MustCompile(`\b(?:NYSE|NASDAQ|AMEX|LSE|TSX):\s?([A-Z]{1,5})\b`)

	wordRe = regexp.MustCompile(`[a-z']+`)
)

// Words that look like cashtags in casual text ($100, $1M) or collide with
// common abbreviations.
var tickerStopwords = map[string]bool{
	"A": true, "I": true, "US": true, "USD": true, "EUR": true, "GBP": true,
	"CEO": true, "CFO": true, "IPO": true, "ETF": true, "GDP": true, "AI": true,
}

// Tickers returns the deduplicated ticker symbols found in text, sorted.
func Tickers(text string) []string {
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{cashtagRe, exchangeRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			sym := strings.ToUpper(m[1])
			if tickerStopwords[sym] {
				continue
			}
			seen[sym] = true
		}
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Market entities recognized by name. Keys are lowercase match phrases.
var entityTable = map[string]string{
	"federal reserve":  "Federal Reserve",
	"the fed":          "Federal Reserve",
	"ecb":              "European Central Bank",
	"european central": "European Central Bank",
	"bank of england":  "Bank of England",
	"bank of japan":    "Bank of Japan",
	"sec":              "SEC",
	"treasury":         "Treasury",
	"imf":              "IMF",
	"s&p 500":          "S&P 500",
	"dow jones":        "Dow Jones",
	"nasdaq composite": "Nasdaq Composite",
	"ftse":             "FTSE",
	"nikkei":           "Nikkei",
	"opec":             "OPEC",
}

// Entities returns the named market entities mentioned in text, sorted and
// deduplicated. Matching is case-insensitive substring matching against a
// fixed table; "SEC" and "IMF" are only matched as standalone words to avoid
// hits inside ordinary vocabulary.
func Entities(text string) []string {
	lower := strings.ToLower(text)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '&')
	}) {
		words[w] = true
	}

	seen := make(map[string]bool)
	for phrase, name := range entityTable {
		if strings.ContainsRune(phrase, ' ') || strings.ContainsRune(phrase, '&') {
			if strings.Contains(lower, phrase) {
				seen[name] = true
			}
		} else if words[phrase] {
			seen[name] = true
		}
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var bullishWords = map[string]bool{
	"surge": true, "surges": true, "surged": true, "rally": true, "rallies": true,
	"rallied": true, "gain": true, "gains": true, "gained": true, "jump": true,
	"jumps": true, "jumped": true, "soar": true, "soars": true, "soared": true,
	"record": true, "beat": true, "beats": true, "upgrade": true, "upgraded": true,
	"bullish": true, "growth": true, "profit": true, "profits": true, "rebound": true,
	"climb": true, "climbs": true, "climbed": true, "outperform": true,
}

var bearishWords = map[string]bool{
	"plunge": true, "plunges": true, "plunged": true, "fall": true, "falls": true,
	"fell": true, "drop": true, "drops": true, "dropped": true, "slump": true,
	"slumps": true, "slumped": true, "crash": true, "crashes": true, "crashed": true,
	"loss": true, "losses": true, "miss": true, "misses": true, "missed": true,
	"downgrade": true, "downgraded": true, "bearish": true, "recession": true,
	"default": true, "bankruptcy": true, "selloff": true, "tumble": true,
	"tumbles": true, "tumbled": true, "warning": true, "layoffs": true,
}

// Sentiment scores text in [-1, 1] by counting bullish and bearish keyword
// hits: (bull - bear) / (bull + bear). Text with no keyword hits scores 0.
func Sentiment(text string) float64 {
	var bull, bear int
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if bullishWords[w] {
			bull++
		}
		if bearishWords[w] {
			bear++
		}
	}
	total := bull + bear
	if total == 0 {
		return 0
	}
	return float64(bull-bear) / float64(total)
}

var highImpactPhrases = []string{
	"rate decision", "rate hike", "rate cut", "interest rate",
	"inflation report", "cpi", "fomc", "quantitative easing",
	"bankruptcy", "default", "bailout", "merger", "acquisition",
	"earnings report", "guidance cut", "crash", "circuit breaker",
}

var mediumImpactPhrases = []string{
	"earnings", "forecast", "guidance", "ipo", "dividend", "buyback",
	"downgrade", "upgrade", "layoffs", "regulation", "tariff", "sanctions",
}

// Impact classifies text as HIGH, MEDIUM, or LOW market impact based on
// phrase hits. Any HIGH phrase wins; two or more MEDIUM hits also promote
// to HIGH.
func Impact(text string) string {
	lower := strings.ToLower(text)

	for _, p := range highImpactPhrases {
		if strings.Contains(lower, p) {
			return ImpactHigh
		}
	}

	hits := 0
	for _, p := range mediumImpactPhrases {
		if strings.Contains(lower, p) {
			hits++
		}
	}
	switch {
	case hits >= 2:
		return ImpactHigh
	case hits == 1:
		return ImpactMedium
	default:
		return ImpactLow
	}
}
