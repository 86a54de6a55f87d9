package Filters

import "math"

// AGC 实现非对称“快起慢放”的自动增益控制
// 包络用 attack/release 两个指数平滑系数跟踪，
// 增益本身再用 attack 系数平滑一次，避免拉链噪声 (zipper noise)
type AGC struct {
	target      float64
	attackCoef  float64
	releaseCoef float64

	// 状态
	envelope float64
	gain     float64
}

// NewAGC 按配置的起音/释放时间 (毫秒) 创建 AGC
// 系数公式: coef = 1 - exp(-1/samples)，samples 为时间常数对应的采样点数
func NewAGC(target, attackMs, releaseMs float64, sampleRate int) *AGC {
	attackSamples := int(attackMs * float64(sampleRate) / 1000.0)
	releaseSamples := int(releaseMs * float64(sampleRate) / 1000.0)
	if attackSamples < 1 {
		attackSamples = 1
	}
	if releaseSamples < 1 {
		releaseSamples = 1
	}
	return &AGC{
		target:      target,
		attackCoef:  1.0 - math.Exp(-1.0/float64(attackSamples)),
		releaseCoef: 1.0 - math.Exp(-1.0/float64(releaseSamples)),
		gain:        1.0,
	}
}

// Process 处理一块采样并返回归一化后的新切片，输入不被修改
func (a *AGC) Process(samples []float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		amplitude := math.Abs(s)

		// 包络跟踪：上升用 attack 系数，下降用 release 系数
		if amplitude > a.envelope {
			a.envelope += a.attackCoef * (amplitude - a.envelope)
		} else {
			a.envelope += a.releaseCoef * (amplitude - a.envelope)
		}

		// 计算目标增益，包络接近 0 时退化为 1.0 防止除零
		desired := 1.0
		if a.envelope > 1e-10 {
			desired = a.target / a.envelope
			if desired < 0.1 {
				desired = 0.1
			} else if desired > 10.0 {
				desired = 10.0
			}
		}

		// 增益平滑
		a.gain += a.attackCoef * (desired - a.gain)

		out[i] = s * a.gain
	}
	return out
}

// Gain 返回当前平滑后的增益（供观测/调试）
func (a *AGC) Gain() float64 {
	return a.gain
}

// Reset 清除包络和增益状态
func (a *AGC) Reset() {
	a.envelope = 0.0
	a.gain = 1.0
}
