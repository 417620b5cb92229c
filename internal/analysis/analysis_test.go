package analysis

import (
	"reflect"
	"testing"
)

func TestTickers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "cashtags",
			text: "Buy $AAPL and $MSFT before earnings",
			want: []string{"AAPL", "MSFT"},
		},
		{
			name: "exchange prefixes",
			text: "NYSE:GE rallied while NASDAQ:TSLA slipped",
			want: []string{"GE", "TSLA"},
		},
		{
			name: "dedup across styles",
			text: "$TSLA again, also NASDAQ:TSLA",
			want: []string{"TSLA"},
		},
		{
			name: "dollar amounts are not tickers",
			text: "raised $100M at a $1B valuation",
			want: nil,
		},
		{
			name: "stopwords filtered",
			text: "$US $CEO $AI chatter",
			want: nil,
		},
		{
			name: "lowercase cashtags ignored",
			text: "$aapl is not a symbol",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tickers(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tickers(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEntities(t *testing.T) {
	got := Entities("The Federal Reserve and the ECB diverge; S&P 500 flat.")
	want := []string{"European Central Bank", "Federal Reserve", "S&P 500"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Entities = %v, want %v", got, want)
	}

	// "sec" must only match as a standalone word
	if got := Entities("a second consecutive quarter"); got != nil {
		t.Errorf("expected no entities in plain prose, got %v", got)
	}
	if got := Entities("The SEC opened an inquiry"); !reflect.DeepEqual(got, []string{"SEC"}) {
		t.Errorf("Entities = %v, want [SEC]", got)
	}
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"all bullish", "stocks surge and rally to record gains", 1},
		{"all bearish", "shares plunge as losses mount, selloff deepens", -1},
		{"neutral prose", "the committee will meet on Tuesday", 0},
		{"mixed", "stocks rally but bank shares plunge", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sentiment(tt.text)
			if got != tt.want {
				t.Errorf("Sentiment(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}

	// Scores stay inside [-1, 1]
	if s := Sentiment("surge surge surge plunge"); s <= 0 || s > 1 {
		t.Errorf("expected positive score within bounds, got %v", s)
	}
}

func TestImpact(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"rate decision", "Fed rate decision due Wednesday", ImpactHigh},
		{"single medium phrase", "quarterly earnings due next week", ImpactMedium},
		{"two medium phrases promote", "earnings and guidance in focus", ImpactHigh},
		{"plain prose", "the weather was mild in the city", ImpactLow},
		{"bankruptcy", "retailer files for bankruptcy protection", ImpactHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Impact(tt.text); got != tt.want {
				t.Errorf("Impact(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}
