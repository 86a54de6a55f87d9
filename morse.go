package cwave

import "strings"

// MorseCodeMap 点划序列到字符的映射表
// 含字母数字标点和常用 prosign，prosign 用尖括号标记
var MorseCodeMap = map[string]string{
	".-":   "A",
	"-...": "B",
	"-.-.": "C",
	"-..":  "D",
	".":    "E",
	"..-.": "F",
	"--.":  "G",
	"....": "H",
	"..":   "I",
	".---": "J",
	"-.-":  "K",
	".-..": "L",
	"--":   "M",
	"-.":   "N",
	"---":  "O",
	".--.": "P",
	"--.-": "Q",
	".-.":  "R",
	"...":  "S",
	"-":    "T",
	"..-":  "U",
	"...-": "V",
	".--":  "W",
	"-..-": "X",
	"-.--": "Y",
	"--..": "Z",

	"-----": "0",
	".----": "1",
	"..---": "2",
	"...--": "3",
	"....-": "4",
	".....": "5",
	"-....": "6",
	"--...": "7",
	"---..": "8",
	"----.": "9",

	".-.-.-":  ".",
	"--..--":  ",",
	"..--..":  "?",
	".----.":  "'",
	"-.-.--":  "!",
	"-..-.":   "/",
	"-.--.":   "(",
	"-.--.-":  ")",
	".-...":   "&",
	"---...":  ":",
	"-.-.-.":  ";",
	"-...-":   "=",
	"-....-":  "-",
	"..--.-":  "_",
	".-..-.":  "\"",
	"...-..-": "$",
	".--.-.":  "@",

	".-.-":     "<AA>",
	".-.-.":    "<AR>",
	"-...-.-":  "<BT>",
	"-.-.-":    "<KA>",
	"...-.-":   "<SK>",
	"........": "<HH>",
}

const (
	// maxFuzzyDistance 模糊匹配容忍的最大编辑距离
	maxFuzzyDistance = 1
	// unknownChar 无法匹配时的占位字符
	unknownChar = "�"
)

// TableDecoder 查表式莫尔斯解码器
// 点划累积成序列，字符/词间隔触发一次查表，查不到时做模糊匹配
type TableDecoder struct {
	pattern      strings.Builder
	patternStart float64
}

// NewTableDecoder 创建解码器
func NewTableDecoder() *TableDecoder {
	return &TableDecoder{}
}

// Decode 处理一批莫尔斯符号，返回解出的字符
func (d *TableDecoder) Decode(symbols []MorseSymbol) []DecodedCharacter {
	var chars []DecodedCharacter
	for _, sym := range symbols {
		switch sym.Element {
		case Dot:
			d.appendMark(".", sym.Timestamp)
		case Dash:
			d.appendMark("-", sym.Timestamp)
		case ElementGap:
			// 码内间隔不产生输出
		case CharGap:
			if c := d.finishPattern(); c != nil {
				chars = append(chars, *c)
			}
		case WordGap:
			if c := d.finishPattern(); c != nil {
				chars = append(chars, *c)
			}
			chars = append(chars, DecodedCharacter{
				Char:       " ",
				Confidence: 1.0,
				Timestamp:  sym.Timestamp,
			})
		}
	}
	return chars
}

func (d *TableDecoder) appendMark(mark string, timestamp float64) {
	if d.pattern.Len() == 0 {
		d.patternStart = timestamp
	}
	d.pattern.WriteString(mark)
}

// finishPattern 查表解出累积的点划序列，序列为空时返回 nil
func (d *TableDecoder) finishPattern() *DecodedCharacter {
	if d.pattern.Len() == 0 {
		return nil
	}
	pattern := d.pattern.String()
	d.pattern.Reset()

	char, confidence := lookupPattern(pattern)
	return &DecodedCharacter{
		Char:       char,
		Confidence: confidence,
		Pattern:    pattern,
		Timestamp:  d.patternStart,
	}
}

// lookupPattern 先精确查表，失败时在编辑距离 1 内找最近的已知序列
func lookupPattern(pattern string) (string, float64) {
	if char, ok := MorseCodeMap[pattern]; ok {
		return char, 1.0
	}

	bestChar := ""
	bestDist := maxFuzzyDistance + 1
	for known, char := range MorseCodeMap {
		d := editDistance(pattern, known)
		if d < bestDist {
			bestDist = d
			bestChar = char
		}
	}
	if bestDist <= maxFuzzyDistance {
		confidence := 1.0 - float64(bestDist)/3.0
		if confidence < 0.3 {
			confidence = 0.3
		}
		return bestChar, confidence
	}
	return unknownChar, 0.0
}

// editDistance 迭代法计算两个序列的编辑距离
func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Flush 流结束时解出尚未终结的序列
func (d *TableDecoder) Flush() []DecodedCharacter {
	if c := d.finishPattern(); c != nil {
		return []DecodedCharacter{*c}
	}
	return nil
}

// Reset 清空累积状态
func (d *TableDecoder) Reset() {
	d.pattern.Reset()
	d.patternStart = 0
}
