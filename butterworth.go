package cwave

import "math"

// BiquadSection 表示一个二阶 IIR 滤波器节 (直接 II 型转置结构)
// a* 为前馈系数，b* 为反馈系数，z1/z2 为延迟线状态
type BiquadSection struct {
	a0, a1, a2, b1, b2 float64
	z1, z2             float64
}

// SetCoeffs 原地替换系数，延迟线状态保留
// retune 依赖这一点来保证滤波输出的连续性
func (s *BiquadSection) SetCoeffs(a0, a1, a2, b1, b2 float64) {
	s.a0, s.a1, s.a2, s.b1, s.b2 = a0, a1, a2, b1, b2
}

// Process 处理单个采样点
func (s *BiquadSection) Process(in float64) float64 {
	out := in*s.a0 + s.z1
	s.z1 = in*s.a1 - out*s.b1 + s.z2
	s.z2 = in*s.a2 - out*s.b2
	return out
}

// Reset 清零延迟线
func (s *BiquadSection) Reset() {
	s.z1 = 0
	s.z2 = 0
}

// biquadCoeffs 一组二阶节系数
type biquadCoeffs struct {
	a0, a1, a2, b1, b2 float64
}

// butterworthPoles 计算 N 阶巴特沃斯模拟原型各二阶节的阻尼角
// order 必须是偶数，每个角度对应一对共轭极点
func butterworthPoles(order int) []float64 {
	thetas := make([]float64, order/2)
	for i := range thetas {
		thetas[i] = math.Pi * (2.0*float64(i) + 1.0) / (2.0 * float64(order))
	}
	return thetas
}

// prewarp 双线性变换的频率预畸变
// cutoff 接近奈奎斯特时 tan 会发散，先做限幅保证数值稳定
func prewarp(sampleRate, cutoffFreq float64) float64 {
	if cutoffFreq >= sampleRate*0.499 {
		cutoffFreq = sampleRate * 0.499
	}
	if cutoffFreq < 1.0 {
		cutoffFreq = 1.0
	}
	return 2.0 * sampleRate * math.Tan(math.Pi*cutoffFreq/sampleRate)
}

// lowpassCoeffs 用双线性变换计算 N 阶巴特沃斯低通的各二阶节系数
// 模拟原型每节: w^2 / (s^2 + 2*w*sin(theta)*s + w^2)
func lowpassCoeffs(order int, sampleRate, cutoffFreq float64) []biquadCoeffs {
	w := prewarp(sampleRate, cutoffFreq)
	k := 2.0 * sampleRate

	coeffs := make([]biquadCoeffs, 0, order/2)
	for _, theta := range butterworthPoles(order) {
		damp := 2.0 * w * math.Sin(theta)
		alpha := k*k + damp*k + w*w

		coeffs = append(coeffs, biquadCoeffs{
			a0: w * w / alpha,
			a1: 2.0 * w * w / alpha,
			a2: w * w / alpha,
			b1: (2.0*w*w - 2.0*k*k) / alpha,
			b2: (k*k - damp*k + w*w) / alpha,
		})
	}
	return coeffs
}

// highpassCoeffs 计算 N 阶巴特沃斯高通的各二阶节系数
// 模拟原型每节: s^2 / (s^2 + 2*w*sin(theta)*s + w^2)，反馈部分与低通相同
func highpassCoeffs(order int, sampleRate, cutoffFreq float64) []biquadCoeffs {
	w := prewarp(sampleRate, cutoffFreq)
	k := 2.0 * sampleRate

	coeffs := make([]biquadCoeffs, 0, order/2)
	for _, theta := range butterworthPoles(order) {
		damp := 2.0 * w * math.Sin(theta)
		alpha := k*k + damp*k + w*w

		coeffs = append(coeffs, biquadCoeffs{
			a0: k * k / alpha,
			a1: -2.0 * k * k / alpha,
			a2: k * k / alpha,
			b1: (2.0*w*w - 2.0*k*k) / alpha,
			b2: (k*k - damp*k + w*w) / alpha,
		})
	}
	return coeffs
}
