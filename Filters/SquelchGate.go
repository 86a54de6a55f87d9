package Filters

import "math"

// SquelchGate 按 RMS 电平开关的静噪门
// 门限带迟滞：高于 threshold+hysteresis 开门，低于 threshold-hysteresis 关门，
// 中间区间保持原状态，避免在门限附近抖动。
// 关门时输出全零，块的长度保持不变。
type SquelchGate struct {
	threshold  float64
	hysteresis float64

	// 状态
	open          bool
	smoothedLevel float64
}

// 电平平滑系数。平滑的是 RMS 测量值，不是音频本身
const squelchSmoothCoef = 0.1

// NewSquelchGate 创建静噪门
func NewSquelchGate(threshold, hysteresis float64) *SquelchGate {
	return &SquelchGate{
		threshold:  threshold,
		hysteresis: hysteresis,
	}
}

// Process 处理一块采样，关门时返回等长的全零切片
func (g *SquelchGate) Process(samples []float64) []float64 {
	rms := 0.0
	if len(samples) > 0 {
		sum := 0.0
		for _, s := range samples {
			sum += s * s
		}
		rms = math.Sqrt(sum / float64(len(samples)))
	}

	g.smoothedLevel += squelchSmoothCoef * (rms - g.smoothedLevel)

	if g.smoothedLevel > g.threshold+g.hysteresis {
		g.open = true
	} else if g.smoothedLevel < g.threshold-g.hysteresis {
		g.open = false
	}

	if g.open {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}
	return make([]float64, len(samples))
}

// IsOpen 返回当前门状态
func (g *SquelchGate) IsOpen() bool {
	return g.open
}

// Reset 关门并清除电平状态
func (g *SquelchGate) Reset() {
	g.open = false
	g.smoothedLevel = 0.0
}
