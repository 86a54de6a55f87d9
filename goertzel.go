package cwave

import "math"

// Goertzel 单频点功率检测器
// 比整块 FFT 便宜得多，适合锁定后只盯一个频率的场景
type Goertzel struct {
	targetFreq float64
	sampleRate int
	coeff      float64
}

// NewGoertzel 创建针对 targetFreq 的检测器
// 系数按块长 blockSize 的最近整数频点计算
func NewGoertzel(targetFreq float64, sampleRate, blockSize int) *Goertzel {
	k := math.Round(float64(blockSize) * targetFreq / float64(sampleRate))
	omega := 2.0 * math.Pi * k / float64(blockSize)
	return &Goertzel{
		targetFreq: targetFreq,
		sampleRate: sampleRate,
		coeff:      2.0 * math.Cos(omega),
	}
}

// Power 计算一块采样在目标频点上的功率
func (g *Goertzel) Power(samples []float64) float64 {
	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = x + g.coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - g.coeff*s1*s2
	return power / float64(len(samples))
}

// TargetFreq 返回检测器绑定的目标频率
func (g *Goertzel) TargetFreq() float64 {
	return g.targetFreq
}

// GoertzelPower 一次性计算 samples 在 freq 上的功率
func GoertzelPower(samples []float64, sampleRate int, freq float64) float64 {
	return NewGoertzel(freq, sampleRate, len(samples)).Power(samples)
}
