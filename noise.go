package cwave

import "cwave/Filters"

// NoiseReducer 噪声抑制链: AGC -> 自适应带通 -> 静噪门
// 各级内部都有状态，必须按到达顺序处理音频块
type NoiseReducer struct {
	agc      *Filters.AGC
	bandpass *AdaptiveBandpassFilter
	squelch  *Filters.SquelchGate
}

// NewNoiseReducer 按配置构建噪声抑制链
// 带通初始中心频率取配置频率范围的中点，锁定后再由 Retune 收窄
func NewNoiseReducer(config *Config) *NoiseReducer {
	initialCenter := (config.MinFrequency + config.MaxFrequency) / 2.0
	return &NoiseReducer{
		agc:      Filters.NewAGC(config.AGCTarget, config.AGCAttackMs, config.AGCReleaseMs, config.SampleRate),
		bandpass: NewAdaptiveBandpassFilter(config.SampleRate, initialCenter, config.FilterBandwidth),
		squelch:  Filters.NewSquelchGate(config.SquelchThreshold, config.SquelchHysteresis),
	}
}

// Process 处理一块音频，返回带相同采样率和时间戳的新块
func (n *NoiseReducer) Process(chunk AudioChunk) AudioChunk {
	data := n.agc.Process(chunk.Data)
	data = n.bandpass.Filter(data)
	data = n.squelch.Process(data)
	return AudioChunk{
		Data:       data,
		SampleRate: chunk.SampleRate,
		Timestamp:  chunk.Timestamp,
	}
}

// Retune 将带通中心频率对准检测到的载波
func (n *NoiseReducer) Retune(centerFreq float64) {
	n.bandpass.Retune(centerFreq)
}

// Center 返回带通当前中心频率
func (n *NoiseReducer) Center() float64 {
	return n.bandpass.Center()
}

// Reset 清空链内全部状态
func (n *NoiseReducer) Reset() {
	n.agc.Reset()
	n.bandpass.Reset()
	n.squelch.Reset()
}
