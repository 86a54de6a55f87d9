package cwave

import (
	"math"
	"sort"
)

const (
	// dashThresholdRatio 点划分界: 超过 2 倍点长判为划
	dashThresholdRatio = 2.0
	// wordGapRatio 字间隔分界: 超过 5 倍点长判为词间隔
	wordGapRatio = 5.0
	// minToneDuration 短于此的音调按毛刺丢弃 (秒)
	minToneDuration = 0.030
	// timingLockRequired 连续稳定多少个音调后进入锁定
	timingLockRequired = 5
	// timingLockCounterCap 计数器上限
	timingLockCounterCap = timingLockRequired + 10
	// timingLockWindowWPM 判定为稳定的速度窗口 (WPM)
	timingLockWindowWPM = 2.0
	// timingEMAAlpha 点长估计的指数平滑系数
	timingEMAAlpha = 0.2
	// timingHistoryCap 锁定前缓存的事件数上限
	timingHistoryCap = 100
	// durationBufferCap 点/划时长环形缓冲容量
	durationBufferCap = 20
	// timingBlendDotWeight 融合估计中点中位数的权重
	timingBlendDotWeight = 0.7
	// minPlausibleDot / maxPlausibleDot 离群值过滤的硬边界 (秒)
	minPlausibleDot = 0.025
	maxPlausibleDot = 0.600
)

// durationBuffer 固定容量的时长环形缓冲
type durationBuffer struct {
	values []float64
	cap    int
}

func newDurationBuffer(capacity int) *durationBuffer {
	return &durationBuffer{cap: capacity}
}

func (b *durationBuffer) Push(v float64) {
	b.values = append(b.values, v)
	if len(b.values) > b.cap {
		b.values = b.values[1:]
	}
}

func (b *durationBuffer) Len() int {
	return len(b.values)
}

// FilteredMedian 返回剔除离群值后的中位数，全部被剔除时返回 0
// 硬边界 [0.025, 0.600] 始终生效，样本数 >=3 后再叠加 IQR 边界
// [max(Q1-1.5*IQR, 0.5*中位数), Q3+1.5*IQR]
func (b *durationBuffer) FilteredMedian() float64 {
	n := len(b.values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, b.values)
	sort.Float64s(sorted)

	lower := minPlausibleDot
	upper := maxPlausibleDot
	if n >= 3 {
		med := medianSorted(sorted)
		q1 := sorted[n/4]
		q3 := sorted[(3*n)/4]
		iqr := q3 - q1
		lower = math.Max(lower, math.Max(q1-1.5*iqr, 0.5*med))
		upper = math.Min(upper, q3+1.5*iqr)
	}

	var kept []float64
	for _, v := range sorted {
		if v >= lower && v <= upper {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return 0
	}
	return medianSorted(kept)
}

func (b *durationBuffer) Reset() {
	b.values = nil
}

func medianSorted(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2.0
	}
	return sorted[mid]
}

// AdaptiveTimingAnalyzer 把键控事件流转换为莫尔斯符号流
// 自适应模式下先缓存事件估计发送速度，速度稳定后锁定并回放缓存
type AdaptiveTimingAnalyzer struct {
	config *Config

	dotDuration float64
	estimated   bool
	dots        *durationBuffer
	dashes      *durationBuffer

	locked      bool
	lockCounter int
	lastWPM     float64

	history   []ToneEvent
	lastEvent *ToneEvent

	numSamples int
}

// NewAdaptiveTimingAnalyzer 创建时序分析器
// 非自适应模式按配置的初始速度固定点长，跳过锁定流程
func NewAdaptiveTimingAnalyzer(config *Config) *AdaptiveTimingAnalyzer {
	a := &AdaptiveTimingAnalyzer{
		config:      config,
		dotDuration: 1.2 / config.InitialWPM,
		dots:        newDurationBuffer(durationBufferCap),
		dashes:      newDurationBuffer(durationBufferCap),
	}
	if !config.AdaptiveTiming {
		a.locked = true
	}
	return a
}

// Analyze 处理一个键控事件，返回由此产生的莫尔斯符号
// 锁定前事件只进缓存不产出，锁定瞬间一次性回放全部缓存
func (a *AdaptiveTimingAnalyzer) Analyze(event ToneEvent) []MorseSymbol {
	if a.locked {
		return a.analyzeLive(event)
	}

	// 锁定前: 缓存事件，同时用音调时长驱动估计和锁定判断
	a.history = append(a.history, event)
	if len(a.history) > timingHistoryCap {
		a.history = a.history[1:]
	}

	if a.lastEvent != nil && a.lastEvent.ToneOn && !event.ToneOn {
		duration := event.Timestamp - a.lastEvent.Timestamp
		if duration >= minToneDuration {
			a.updateEstimate(duration)
		}
	}
	ev := event
	a.lastEvent = &ev

	if a.locked {
		return a.replayHistory()
	}
	return nil
}

// analyzeLive 锁定后的实时分类
func (a *AdaptiveTimingAnalyzer) analyzeLive(event ToneEvent) []MorseSymbol {
	defer func() {
		ev := event
		a.lastEvent = &ev
	}()

	if a.lastEvent == nil {
		return nil
	}

	var symbols []MorseSymbol
	duration := event.Timestamp - a.lastEvent.Timestamp

	switch {
	case a.lastEvent.ToneOn && !event.ToneOn:
		// 音调结束
		if duration < minToneDuration {
			return nil
		}
		if a.config.AdaptiveTiming {
			a.updateEstimate(duration)
		}
		a.numSamples++
		symbols = append(symbols, MorseSymbol{
			Element:   a.classifyTone(duration),
			Duration:  duration,
			Timestamp: a.lastEvent.Timestamp,
		})

	case !a.lastEvent.ToneOn && event.ToneOn:
		// 间隔结束，非正时长的事件对直接丢弃
		if duration <= 0 {
			return nil
		}
		symbols = append(symbols, MorseSymbol{
			Element:   a.classifyGap(duration),
			Duration:  duration,
			Timestamp: a.lastEvent.Timestamp,
		})
	}
	return symbols
}

// replayHistory 锁定瞬间用收敛后的点长回放缓存事件
// 过短的音调丢弃，间隔只在紧跟成功音调时产出
func (a *AdaptiveTimingAnalyzer) replayHistory() []MorseSymbol {
	var symbols []MorseSymbol
	var pendingOn *ToneEvent
	var lastOff *ToneEvent
	lastToneOK := false

	for i := range a.history {
		ev := a.history[i]
		if ev.ToneOn {
			if lastOff != nil && lastToneOK {
				if gap := ev.Timestamp - lastOff.Timestamp; gap > 0 {
					symbols = append(symbols, MorseSymbol{
						Element:   a.classifyGap(gap),
						Duration:  gap,
						Timestamp: lastOff.Timestamp,
					})
				}
			}
			pendingOn = &a.history[i]
			continue
		}

		if pendingOn == nil {
			continue
		}
		duration := ev.Timestamp - pendingOn.Timestamp
		if duration >= minToneDuration {
			a.numSamples++
			symbols = append(symbols, MorseSymbol{
				Element:   a.classifyTone(duration),
				Duration:  duration,
				Timestamp: pendingOn.Timestamp,
			})
			lastToneOK = true
		} else {
			lastToneOK = false
		}
		lastOff = &a.history[i]
		pendingOn = nil
	}

	a.history = nil
	return symbols
}

// classifyTone 按当前点长把音调时长分为点或划
func (a *AdaptiveTimingAnalyzer) classifyTone(duration float64) MorseElement {
	if duration < dashThresholdRatio*a.dotDuration {
		return Dot
	}
	return Dash
}

// classifyGap 把间隔时长分为码内/字符/词间隔
func (a *AdaptiveTimingAnalyzer) classifyGap(duration float64) MorseElement {
	switch {
	case duration < dashThresholdRatio*a.dotDuration:
		return ElementGap
	case duration < wordGapRatio*a.dotDuration:
		return CharGap
	default:
		return WordGap
	}
}

// updateEstimate 用一个新音调时长更新点长估计和锁定计数器
// 点/划中位数按 0.7/0.3 融合出原始估计，速度越界时整次更新丢弃
// 首次有效估计直接落位并置计数为 1，之后做指数平滑
func (a *AdaptiveTimingAnalyzer) updateEstimate(duration float64) {
	if a.classifyTone(duration) == Dot {
		a.dots.Push(duration)
	} else {
		a.dashes.Push(duration)
	}

	// 单个样本不足以定速
	if !a.estimated && a.dots.Len()+a.dashes.Len() < 2 {
		return
	}

	dotMed := a.dots.FilteredMedian()
	dashMed := a.dashes.FilteredMedian()

	var raw float64
	switch {
	case dotMed > 0 && dashMed > 0:
		raw = timingBlendDotWeight*dotMed + (1.0-timingBlendDotWeight)*dashMed/3.0
	case dotMed > 0:
		raw = dotMed
	case dashMed > 0:
		raw = dashMed / 3.0
	default:
		return
	}

	if wpm := 1.2 / raw; wpm < a.config.MinWPM || wpm > a.config.MaxWPM {
		return
	}

	if !a.estimated {
		a.estimated = true
		a.dotDuration = raw
		a.lastWPM = 1.2 / raw
		a.lockCounter = 1
		return
	}

	newDot := (1.0-timingEMAAlpha)*a.dotDuration + timingEMAAlpha*raw
	newWPM := 1.2 / newDot
	if math.Abs(newWPM-a.lastWPM) <= timingLockWindowWPM {
		if a.lockCounter < timingLockCounterCap {
			a.lockCounter++
		}
	} else if a.lockCounter > 0 {
		a.lockCounter--
	}
	a.dotDuration = newDot
	a.lastWPM = newWPM

	if a.lockCounter >= timingLockRequired {
		a.locked = true
	}
}

// TimingStats 返回当前速度估计快照
func (a *AdaptiveTimingAnalyzer) TimingStats() *TimingStats {
	stats := TimingStatsFromDot(a.dotDuration, a.numSamples)
	return &stats
}

// IsLocked 返回速度是否已锁定
func (a *AdaptiveTimingAnalyzer) IsLocked() bool {
	return a.locked
}

// Flush 流结束时清算: 未锁定时先用当前估计尽力回放缓存
// 悬挂的音调按划补齐，再追加一个字符间隔促使末字符解码
func (a *AdaptiveTimingAnalyzer) Flush() []MorseSymbol {
	if a.lastEvent == nil {
		return nil
	}
	pending := a.lastEvent.ToneOn
	ts := a.lastEvent.Timestamp
	a.lastEvent = nil

	var symbols []MorseSymbol
	if !a.locked && len(a.history) > 0 {
		symbols = a.replayHistory()
	}

	if pending {
		symbols = append(symbols, MorseSymbol{
			Element:   Dash,
			Duration:  3.0 * a.dotDuration,
			Timestamp: ts,
		})
	}
	symbols = append(symbols, MorseSymbol{
		Element:   CharGap,
		Duration:  3.0 * a.dotDuration,
		Timestamp: ts,
	})
	return symbols
}

// Reset 回到初始状态
func (a *AdaptiveTimingAnalyzer) Reset() {
	a.dotDuration = 1.2 / a.config.InitialWPM
	a.estimated = false
	a.dots.Reset()
	a.dashes.Reset()
	a.locked = !a.config.AdaptiveTiming
	a.lockCounter = 0
	a.lastWPM = 0
	a.history = nil
	a.lastEvent = nil
	a.numSamples = 0
}
