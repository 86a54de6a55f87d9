package cwave

// bandpassOrder 高通/低通各自的巴特沃斯阶数
const bandpassOrder = 4

// AdaptiveBandpassFilter 可重调中心频率的带通滤波器
// 由高通(下截止)和低通(上截止)级联构成，重调时保留延迟线状态
type AdaptiveBandpassFilter struct {
	sampleRate int
	bandwidth  float64
	center     float64

	highpass []*BiquadSection
	lowpass  []*BiquadSection
}

// NewAdaptiveBandpassFilter 创建带通滤波器，初始中心频率为 centerFreq
func NewAdaptiveBandpassFilter(sampleRate int, centerFreq, bandwidth float64) *AdaptiveBandpassFilter {
	f := &AdaptiveBandpassFilter{
		sampleRate: sampleRate,
		bandwidth:  bandwidth,
		center:     centerFreq,
	}
	for i := 0; i < bandpassOrder/2; i++ {
		f.highpass = append(f.highpass, &BiquadSection{})
		f.lowpass = append(f.lowpass, &BiquadSection{})
	}
	f.design()
	return f
}

// design 根据当前中心频率重新计算级联系数
// 截止频率限制在 [1, 奈奎斯特-1] 内，且上截止始终高于下截止
func (f *AdaptiveBandpassFilter) design() {
	nyquist := float64(f.sampleRate) / 2.0

	low := f.center - f.bandwidth/2.0
	high := f.center + f.bandwidth/2.0

	if low < 1.0 {
		low = 1.0
	}
	if low > nyquist-1.0 {
		low = nyquist - 1.0
	}
	if high > nyquist-1.0 {
		high = nyquist - 1.0
	}
	if high < low+1.0 {
		high = low + 1.0
	}

	for i, c := range highpassCoeffs(bandpassOrder, float64(f.sampleRate), low) {
		f.highpass[i].SetCoeffs(c.a0, c.a1, c.a2, c.b1, c.b2)
	}
	for i, c := range lowpassCoeffs(bandpassOrder, float64(f.sampleRate), high) {
		f.lowpass[i].SetCoeffs(c.a0, c.a1, c.a2, c.b1, c.b2)
	}
}

// Filter 对一块采样做带通滤波，返回新切片
func (f *AdaptiveBandpassFilter) Filter(samples []float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		v := s
		for _, sec := range f.highpass {
			v = sec.Process(v)
		}
		for _, sec := range f.lowpass {
			v = sec.Process(v)
		}
		out[i] = v
	}
	return out
}

// Retune 将中心频率移到 centerFreq 并重新设计系数
// 延迟线状态保留，避免输出出现跳变
func (f *AdaptiveBandpassFilter) Retune(centerFreq float64) {
	f.center = centerFreq
	f.design()
}

// Center 返回当前中心频率
func (f *AdaptiveBandpassFilter) Center() float64 {
	return f.center
}

// Reset 清零所有延迟线，系数不变
func (f *AdaptiveBandpassFilter) Reset() {
	for _, sec := range f.highpass {
		sec.Reset()
	}
	for _, sec := range f.lowpass {
		sec.Reset()
	}
}
