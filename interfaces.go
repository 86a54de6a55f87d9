package cwave

// 各级处理器的通用契约。流水线只依赖这些接口，
// 方便在测试中用假实现替换单独某一级。

// AudioSource 产生固定大小、单声道、时间戳递增的音频块
// 数据读完时返回 io.EOF，Close 释放底层资源（文件句柄或音频设备）
type AudioSource interface {
	ReadChunk() (AudioChunk, error)
	Close() error
}

// FrequencyDetector 捕获并跟踪载波频率
// Detect 在没有可信信号时返回 nil（不是错误）
type FrequencyDetector interface {
	Detect(chunk AudioChunk) *SignalStats
	IsLocked() bool
	Reset()
}

// ToneDetector 把整理后的音频转换为载波开/关跳变事件
type ToneDetector interface {
	Detect(chunk AudioChunk) []ToneEvent
	Reset()
}

// TimingAnalyzer 把跳变事件序列转换为摩尔斯码元，并自适应学习点长
// TimingStats 返回当前估计的快照，锁定前置信度较低
type TimingAnalyzer interface {
	Analyze(event ToneEvent) []MorseSymbol
	TimingStats() *TimingStats
	IsLocked() bool
	Flush() []MorseSymbol
	Reset()
}

// Decoder 把码元序列累积成字符
type Decoder interface {
	Decode(symbols []MorseSymbol) []DecodedCharacter
	Flush() []DecodedCharacter
	Reset()
}
