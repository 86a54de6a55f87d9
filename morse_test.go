package cwave

import (
	"strings"
	"testing"
)

// symbolsFor 把点划字符串转成符号序列，结尾带字符间隔
func symbolsFor(pattern string, terminator MorseElement) []MorseSymbol {
	var symbols []MorseSymbol
	for _, mark := range pattern {
		element := Dot
		if mark == '-' {
			element = Dash
		}
		symbols = append(symbols, MorseSymbol{Element: element, Duration: 0.06})
		symbols = append(symbols, MorseSymbol{Element: ElementGap, Duration: 0.06})
	}
	symbols = append(symbols, MorseSymbol{Element: terminator, Duration: 0.18})
	return symbols
}

func TestTableDecoder_ExactLookup(t *testing.T) {
	decoder := NewTableDecoder()

	var text strings.Builder
	for _, pattern := range []string{"...", "---", "..."} {
		for _, c := range decoder.Decode(symbolsFor(pattern, CharGap)) {
			if c.Confidence != 1.0 {
				t.Errorf("exact match %q confidence %v, want 1.0", c.Pattern, c.Confidence)
			}
			text.WriteString(c.Char)
		}
	}
	if text.String() != "SOS" {
		t.Errorf("decoded %q, want SOS", text.String())
	}
}

func TestTableDecoder_WordGapAppendsSpace(t *testing.T) {
	decoder := NewTableDecoder()

	chars := decoder.Decode(symbolsFor(".", WordGap))
	if len(chars) != 2 {
		t.Fatalf("expected char + space, got %+v", chars)
	}
	if chars[0].Char != "E" {
		t.Errorf("first char %q, want E", chars[0].Char)
	}
	if chars[1].Char != " " || chars[1].Confidence != 1.0 {
		t.Errorf("space char %+v", chars[1])
	}
}

func TestTableDecoder_FuzzyMatch(t *testing.T) {
	decoder := NewTableDecoder()

	// "....." 多敲一个点变 "......": 距任何表项至少 1，距 5 和 6 正好 1
	chars := decoder.Decode(symbolsFor("......", CharGap))
	if len(chars) != 1 {
		t.Fatalf("got %+v", chars)
	}
	c := chars[0]
	if c.Confidence >= 1.0 || c.Confidence < 0.3 {
		t.Errorf("fuzzy confidence %v, want in [0.3, 1.0)", c.Confidence)
	}
	if c.Char == unknownChar {
		t.Errorf("distance-1 pattern should fuzzy match, got placeholder")
	}
}

func TestTableDecoder_UnknownPattern(t *testing.T) {
	decoder := NewTableDecoder()

	// 与任何表项都差 2 以上的长序列
	chars := decoder.Decode(symbolsFor(".-.-.-.-.-.-", CharGap))
	if len(chars) != 1 {
		t.Fatalf("got %+v", chars)
	}
	if chars[0].Char != unknownChar || chars[0].Confidence != 0 {
		t.Errorf("unmatched pattern should yield placeholder with 0 confidence, got %+v", chars[0])
	}
}

func TestTableDecoder_Prosigns(t *testing.T) {
	cases := map[string]string{
		"...-.-":   "<SK>",
		".-.-.":    "<AR>",
		"-.-.-":    "<KA>",
		"........": "<HH>",
	}
	for pattern, want := range cases {
		decoder := NewTableDecoder()
		chars := decoder.Decode(symbolsFor(pattern, CharGap))
		if len(chars) != 1 || chars[0].Char != want {
			t.Errorf("pattern %q: got %+v, want %s", pattern, chars, want)
		}
	}
}

func TestTableDecoder_FlushDecodesOpenPattern(t *testing.T) {
	decoder := NewTableDecoder()

	// 点划后没有终结间隔
	decoder.Decode([]MorseSymbol{
		{Element: Dot}, {Element: ElementGap},
		{Element: Dot}, {Element: ElementGap},
		{Element: Dot},
	})

	chars := decoder.Flush()
	if len(chars) != 1 || chars[0].Char != "S" {
		t.Errorf("flush should decode pending S, got %+v", chars)
	}
	if extra := decoder.Flush(); extra != nil {
		t.Errorf("second flush should be empty, got %+v", extra)
	}
}

func TestTableDecoder_EmptyGapProducesNothing(t *testing.T) {
	decoder := NewTableDecoder()

	// 没有累积点划时的间隔不产生字符
	chars := decoder.Decode([]MorseSymbol{{Element: CharGap}})
	if len(chars) != 0 {
		t.Errorf("empty pattern decoded to %+v", chars)
	}
}

func TestTableDecoder_PatternTimestamp(t *testing.T) {
	decoder := NewTableDecoder()

	chars := decoder.Decode([]MorseSymbol{
		{Element: Dot, Timestamp: 1.5},
		{Element: ElementGap, Timestamp: 1.56},
		{Element: Dash, Timestamp: 1.62},
		{Element: CharGap, Timestamp: 1.80},
	})
	if len(chars) != 1 {
		t.Fatalf("got %+v", chars)
	}
	if chars[0].Timestamp != 1.5 {
		t.Errorf("char timestamp %v, want start of pattern 1.5", chars[0].Timestamp)
	}
	if chars[0].Char != "A" {
		t.Errorf("decoded %q, want A", chars[0].Char)
	}
}

func TestTableDecoder_Reset(t *testing.T) {
	decoder := NewTableDecoder()
	decoder.Decode([]MorseSymbol{{Element: Dot}, {Element: Dash}})
	decoder.Reset()
	if chars := decoder.Flush(); chars != nil {
		t.Errorf("reset should discard pending pattern, got %+v", chars)
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"...", "...", 0},
		{"...", "..", 1},
		{"...", "..-", 1},
		{"", "..-", 3},
		{".-.-", "-.-.", 2},
	}
	for _, c := range cases {
		if got := editDistance(c.a, c.b); got != c.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
