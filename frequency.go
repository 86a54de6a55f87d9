package cwave

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	// freqLockRequired 连续命中多少块后进入锁定
	freqLockRequired = 5
	// freqLockWindow 判定为同一载波的频率窗口 (Hz)
	freqLockWindow = 10.0
	// freqEMAAlpha 候选频率的指数平滑系数
	freqEMAAlpha = 0.3
	// freqNoiseExclusion 计算噪底时排除峰值附近的频带 (Hz)
	freqNoiseExclusion = 100.0
	// freqNeighborOffset 锁定后估计噪底用的邻近频点偏移 (Hz)
	freqNeighborOffset = 50.0
	// snrSentinelDB 噪底接近零时的信噪比上限
	snrSentinelDB = 100.0
)

// CarrierTracker 载波频率检测与锁定状态机
// 未锁定时用 FFT 全频段搜索，锁定后切换到 Goertzel 单点跟踪
type CarrierTracker struct {
	config *Config

	locked        bool
	candidateFreq float64
	lockedFreq    float64
	counter       int

	signal   *Goertzel
	noiseLow *Goertzel
	noiseHi  *Goertzel
}

// NewCarrierTracker 创建频率检测器
func NewCarrierTracker(config *Config) *CarrierTracker {
	return &CarrierTracker{config: config}
}

// Detect 处理一块音频，返回本块的信号统计
// 锁定状态可能在调用中翻转，用 IsLocked 查询
func (c *CarrierTracker) Detect(chunk AudioChunk) *SignalStats {
	if c.locked {
		return c.track(chunk)
	}
	return c.acquire(chunk)
}

// acquire 未锁定阶段: 加汉宁窗做 FFT，在配置频段内找峰值
func (c *CarrierTracker) acquire(chunk AudioChunk) *SignalStats {
	n := len(chunk.Data)
	if n == 0 {
		return nil
	}

	windowed := make([]float64, n)
	copy(windowed, chunk.Data)
	window.Apply(windowed, window.Hann)

	spectrum := fft.FFTReal(windowed)
	binWidth := float64(chunk.SampleRate) / float64(n)

	// 只在配置的频率范围内找峰
	peakBin := -1
	peakMag := 0.0
	for bin := 1; bin <= n/2; bin++ {
		freq := float64(bin) * binWidth
		if freq < c.config.MinFrequency || freq > c.config.MaxFrequency {
			continue
		}
		mag := cmplx.Abs(spectrum[bin])
		if mag > peakMag {
			peakMag = mag
			peakBin = bin
		}
	}
	if peakBin < 0 {
		return nil
	}
	peakFreq := float64(peakBin) * binWidth

	// 噪底取搜索范围内远离峰值频带的幅度中位数
	// 带通滤波后范围外的频点接近零，混进来会把噪底拉没
	var noiseBins, rangeBins []float64
	for bin := 1; bin <= n/2; bin++ {
		freq := float64(bin) * binWidth
		if freq < c.config.MinFrequency || freq > c.config.MaxFrequency {
			continue
		}
		rangeBins = append(rangeBins, cmplx.Abs(spectrum[bin]))
		if math.Abs(freq-peakFreq) < freqNoiseExclusion {
			continue
		}
		noiseBins = append(noiseBins, cmplx.Abs(spectrum[bin]))
	}
	if len(noiseBins) == 0 {
		// 排除带覆盖了整个搜索范围，退回全范围中位数
		noiseBins = rangeBins
	}
	noiseFloor := median(noiseBins)

	snr := snrSentinelDB
	if noiseFloor > 1e-12 {
		snr = 20.0 * math.Log10(peakMag/noiseFloor)
		if snr > snrSentinelDB {
			snr = snrSentinelDB
		}
	}

	c.updateCandidate(peakFreq, snr)

	return &SignalStats{
		Frequency: peakFreq,
		SNRdB:     snr,
		Power:     peakMag * peakMag,
		Timestamp: chunk.Timestamp,
	}
}

// updateCandidate 维护候选频率和锁定计数器
func (c *CarrierTracker) updateCandidate(peakFreq, snr float64) {
	if snr < c.config.MinSNRdB {
		// 搜索阶段要求连续命中，一次失败即推倒重来
		c.candidateFreq = 0
		c.counter = 0
		return
	}

	if c.candidateFreq == 0 || math.Abs(peakFreq-c.candidateFreq) > freqLockWindow {
		// 新候选，从头计数
		c.candidateFreq = peakFreq
		c.counter = 1
		return
	}

	c.candidateFreq = (1.0-freqEMAAlpha)*c.candidateFreq + freqEMAAlpha*peakFreq
	if c.counter < freqLockRequired+freqLockCounterMargin {
		c.counter++
	}

	if c.counter >= freqLockRequired {
		c.lock(c.candidateFreq)
	}
}

// freqLockCounterMargin 计数器上限超出锁定门限的余量
// 避免长时间强信号后需要同样长的弱信号才能解锁
const freqLockCounterMargin = 5

// lock 进入锁定状态，构建目标频点和邻近噪声频点的 Goertzel 检测器
func (c *CarrierTracker) lock(freq float64) {
	c.locked = true
	c.lockedFreq = freq

	nyquist := float64(c.config.SampleRate) / 2.0
	low := math.Max(1.0, freq-freqNeighborOffset)
	high := math.Min(nyquist-1.0, freq+freqNeighborOffset)

	c.signal = NewGoertzel(freq, c.config.SampleRate, c.config.ChunkSize)
	c.noiseLow = NewGoertzel(low, c.config.SampleRate, c.config.ChunkSize)
	c.noiseHi = NewGoertzel(high, c.config.SampleRate, c.config.ChunkSize)
}

// track 锁定阶段: Goertzel 单点跟踪，信噪比持续过低则解锁
func (c *CarrierTracker) track(chunk AudioChunk) *SignalStats {
	if len(chunk.Data) == 0 {
		return nil
	}

	sigPower := c.signal.Power(chunk.Data)
	noisePower := (c.noiseLow.Power(chunk.Data) + c.noiseHi.Power(chunk.Data)) / 2.0

	snr := snrSentinelDB
	if noisePower > 1e-12 {
		snr = 10.0 * math.Log10(sigPower/noisePower)
		if snr > snrSentinelDB {
			snr = snrSentinelDB
		}
	}

	if snr >= c.config.MinSNRdB {
		if c.counter < freqLockRequired+freqLockCounterMargin {
			c.counter++
		}
	} else {
		c.counter--
		if c.counter <= 0 {
			c.unlock()
		}
	}

	return &SignalStats{
		Frequency: c.lockedFreq,
		SNRdB:     snr,
		Power:     sigPower,
		Timestamp: chunk.Timestamp,
	}
}

// unlock 回到搜索状态
func (c *CarrierTracker) unlock() {
	c.locked = false
	c.candidateFreq = 0
	c.lockedFreq = 0
	c.counter = 0
	c.signal = nil
	c.noiseLow = nil
	c.noiseHi = nil
}

// IsLocked 返回是否处于锁定状态
func (c *CarrierTracker) IsLocked() bool {
	return c.locked
}

// LockedFrequency 返回锁定的载波频率，未锁定时为 0
func (c *CarrierTracker) LockedFrequency() float64 {
	return c.lockedFreq
}

// Reset 清空全部状态
func (c *CarrierTracker) Reset() {
	c.unlock()
}

// median 返回切片的中位数，空切片返回 0
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2.0
	}
	return sorted[mid]
}
