package cwave

import "math"

// AudioChunk 表示一块带时间戳的单声道音频数据
// 采样值范围 [-1.0, 1.0]，构造后不再修改（各级处理都产生新的数据切片）
type AudioChunk struct {
	Data       []float64
	SampleRate int
	Timestamp  float64 // 块内第一个采样点的时间 (秒)
}

// Duration 返回音频块的时长 (秒)
func (c AudioChunk) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Data)) / float64(c.SampleRate)
}

// RMS 计算音频块的均方根电平
func (c AudioChunk) RMS() float64 {
	if len(c.Data) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range c.Data {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(c.Data)))
}

// ToneEvent 表示一次载波开/关跳变事件
// 每次状态翻转只产生一个事件，而不是每个采样点一个
type ToneEvent struct {
	ToneOn    bool    // true: 载波出现, false: 载波消失
	Timestamp float64 // 事件时间 (秒)
	Amplitude float64 // 事件时刻的包络电平 (≥0)
}

// MorseElement 摩尔斯码元类型
type MorseElement int

const (
	Dot MorseElement = iota
	Dash
	ElementGap // 点划之间的间隔 (1 单位)
	CharGap    // 字符之间的间隔 (3 单位)
	WordGap    // 单词之间的间隔 (7 单位)
)

// String 返回码元的可读名称
func (e MorseElement) String() string {
	switch e {
	case Dot:
		return "DOT"
	case Dash:
		return "DASH"
	case ElementGap:
		return "ELEMENT_GAP"
	case CharGap:
		return "CHAR_GAP"
	case WordGap:
		return "WORD_GAP"
	}
	return "UNKNOWN"
}

// MorseSymbol 表示一个带时长信息的摩尔斯码元
type MorseSymbol struct {
	Element   MorseElement
	Duration  float64 // 码元持续时间 (秒, ≥0)
	Timestamp float64 // 码元开始时间 (秒)
}

// DecodedCharacter 表示一个解码出的字符及其置信度
// Char 是单个可打印字符，或者形如 "<SK>" 的 prosign 标记
type DecodedCharacter struct {
	Char       string
	Confidence float64 // [0.0, 1.0]，1.0 为精确匹配
	Pattern    string  // 产生该字符的点划序列，例如 ".-"
	Timestamp  float64
}

// SignalStats 频率检测器输出的信号统计
type SignalStats struct {
	Frequency float64 // 检测到的载波频率 (Hz)
	SNRdB     float64 // 信噪比 (dB)
	Power     float64 // 峰值功率
	Timestamp float64
}

// TimingStats 时序分析器输出的速度统计
// PARIS 标准: WPM = 1.2 / 点长(秒)
type TimingStats struct {
	DotDuration float64 // 点长 (秒, >0)
	WPM         float64
	Confidence  float64 // [0.0, 1.0]
	NumSamples  int     // 参与统计的样本数
}

// TimingStatsFromDot 按 PARIS 标准由点长构造 TimingStats
// 置信度随样本数线性增长，10 个样本封顶: min(1, n/10)
func TimingStatsFromDot(dotDuration float64, numSamples int) TimingStats {
	wpm := 1.2 / dotDuration
	confidence := 0.0
	if numSamples > 0 {
		confidence = math.Min(1.0, float64(numSamples)/10.0)
	}
	return TimingStats{
		DotDuration: dotDuration,
		WPM:         wpm,
		Confidence:  confidence,
		NumSamples:  numSamples,
	}
}

// DecoderState 是流水线对外的状态快照
// 每解码出一个字符就整体复制一份，调用方拿到的永远是值拷贝
type DecoderState struct {
	SignalStats     *SignalStats
	TimingStats     *TimingStats
	FrequencyLocked bool
	TimingLocked    bool
	CharsDecoded    int
}
