package cwave

import (
	"math"
	"testing"
)

// keyEvents 按给定的音调/间隔时长序列生成键控事件
// durations 从音调开始，正值为音调，交替为间隔
func keyEvents(durations []float64) []ToneEvent {
	var events []ToneEvent
	t := 0.0
	on := true
	for _, d := range durations {
		events = append(events, ToneEvent{ToneOn: on, Timestamp: t, Amplitude: 0.5})
		t += d
		on = !on
	}
	// 末尾补一个关事件终结最后的音调
	if !on {
		events = append(events, ToneEvent{ToneOn: false, Timestamp: t})
	}
	return events
}

// repeatDots 生成 n 个 dot 时长的音调，中间夹 dot 时长的间隔
func repeatDots(n int, dot float64) []float64 {
	var durations []float64
	for i := 0; i < n; i++ {
		if i > 0 {
			durations = append(durations, dot)
		}
		durations = append(durations, dot)
	}
	return durations
}

func fixedConfig() *Config {
	cfg := DefaultConfig()
	cfg.AdaptiveTiming = false
	return cfg
}

func TestTimingAnalyzer_FixedModeClassification(t *testing.T) {
	cfg := fixedConfig() // 20 WPM: dot 60ms
	analyzer := NewAdaptiveTimingAnalyzer(cfg)

	// dot(60ms) gap(60ms) dash(180ms) 字符间隔(180ms) dot
	events := keyEvents([]float64{0.060, 0.060, 0.180, 0.180, 0.060})

	var symbols []MorseSymbol
	for _, ev := range events {
		symbols = append(symbols, analyzer.Analyze(ev)...)
	}

	want := []MorseElement{Dot, ElementGap, Dash, CharGap, Dot}
	if len(symbols) != len(want) {
		t.Fatalf("got %d symbols %v, want %d", len(symbols), symbols, len(want))
	}
	for i, sym := range symbols {
		if sym.Element != want[i] {
			t.Errorf("symbol %d: %v, want %v", i, sym.Element, want[i])
		}
	}
}

func TestTimingAnalyzer_WordGap(t *testing.T) {
	analyzer := NewAdaptiveTimingAnalyzer(fixedConfig())

	// dot, 7 单位间隔, dot
	events := keyEvents([]float64{0.060, 0.420, 0.060})
	var symbols []MorseSymbol
	for _, ev := range events {
		symbols = append(symbols, analyzer.Analyze(ev)...)
	}

	want := []MorseElement{Dot, WordGap, Dot}
	if len(symbols) != len(want) {
		t.Fatalf("got %v", symbols)
	}
	for i, sym := range symbols {
		if sym.Element != want[i] {
			t.Errorf("symbol %d: %v, want %v", i, sym.Element, want[i])
		}
	}
}

func TestTimingAnalyzer_DropsGlitchTones(t *testing.T) {
	analyzer := NewAdaptiveTimingAnalyzer(fixedConfig())

	// 20ms 的毛刺音调不应产生点划
	events := []ToneEvent{
		{ToneOn: true, Timestamp: 0},
		{ToneOn: false, Timestamp: 0.020},
	}
	var symbols []MorseSymbol
	for _, ev := range events {
		symbols = append(symbols, analyzer.Analyze(ev)...)
	}
	for _, sym := range symbols {
		if sym.Element == Dot || sym.Element == Dash {
			t.Errorf("glitch produced a mark: %v", sym)
		}
	}
}

func TestTimingAnalyzer_AdaptiveLockAndReplay(t *testing.T) {
	cfg := DefaultConfig() // adaptive, 初始 20 WPM
	analyzer := NewAdaptiveTimingAnalyzer(cfg)

	// 锁定前不产出任何符号，事件进缓存
	events := keyEvents(repeatDots(6, 0.060))
	var symbols []MorseSymbol
	for _, ev := range events {
		out := analyzer.Analyze(ev)
		if len(out) > 0 && !analyzer.IsLocked() {
			t.Error("symbols emitted before lock")
		}
		symbols = append(symbols, out...)
	}
	if !analyzer.IsLocked() {
		t.Fatal("stable dots should lock the analyzer")
	}

	// 回放应恢复全部缓存的音调: 6 个点和 5 个间隔
	dots := 0
	gaps := 0
	for _, sym := range symbols {
		switch sym.Element {
		case Dot:
			dots++
		case ElementGap:
			gaps++
		case Dash:
			t.Errorf("60ms tone classified as dash")
		}
	}
	if dots != 6 {
		t.Errorf("replay recovered %d dots, want 6", dots)
	}
	if gaps != 5 {
		t.Errorf("replay recovered %d element gaps, want 5", gaps)
	}

	stats := analyzer.TimingStats()
	if stats.WPM < 18 || stats.WPM > 22 {
		t.Errorf("WPM %v, want near 20", stats.WPM)
	}
}

func TestTimingAnalyzer_SpeedConvergence(t *testing.T) {
	cfg := DefaultConfig()
	analyzer := NewAdaptiveTimingAnalyzer(cfg)

	// 25 WPM (48ms 点长) 的长序列，估计应收敛到发送速度
	for _, ev := range keyEvents(repeatDots(30, 0.048)) {
		analyzer.Analyze(ev)
	}

	stats := analyzer.TimingStats()
	if stats.WPM < 24 || stats.WPM > 26 {
		t.Errorf("WPM %v after 30 dots at 25 WPM", stats.WPM)
	}
	if !analyzer.IsLocked() {
		t.Error("long stable sequence should lock")
	}
}

func TestTimingAnalyzer_OutlierRejection(t *testing.T) {
	buf := newDurationBuffer(durationBufferCap)
	for i := 0; i < 10; i++ {
		buf.Push(0.060)
	}
	buf.Push(0.450) // 离群值

	med := buf.FilteredMedian()
	if math.Abs(med-0.060) > 0.005 {
		t.Errorf("filtered median %v, outlier not rejected", med)
	}
}

func TestTimingAnalyzer_FlushReplaysUnlockedHistory(t *testing.T) {
	cfg := DefaultConfig()
	analyzer := NewAdaptiveTimingAnalyzer(cfg)

	// 只有 3 个点，不足以锁定
	for _, ev := range keyEvents(repeatDots(3, 0.060)) {
		if out := analyzer.Analyze(ev); len(out) > 0 {
			t.Fatalf("unexpected output before lock: %v", out)
		}
	}
	if analyzer.IsLocked() {
		t.Fatal("3 dots should not lock")
	}

	symbols := analyzer.Flush()
	dots := 0
	for _, sym := range symbols {
		if sym.Element == Dot {
			dots++
		}
	}
	if dots != 3 {
		t.Errorf("flush recovered %d dots, want 3", dots)
	}
}

func TestTimingAnalyzer_ResetDeterminism(t *testing.T) {
	cfg := DefaultConfig()
	analyzer := NewAdaptiveTimingAnalyzer(cfg)

	events := keyEvents(repeatDots(8, 0.060))
	var first []MorseSymbol
	for _, ev := range events {
		first = append(first, analyzer.Analyze(ev)...)
	}

	analyzer.Reset()
	if analyzer.IsLocked() {
		t.Fatal("reset must clear the lock")
	}

	var second []MorseSymbol
	for _, ev := range events {
		second = append(second, analyzer.Analyze(ev)...)
	}

	if len(first) != len(second) {
		t.Fatalf("symbol counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestTimingAnalyzer_RejectsOutOfRangeSpeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialWPM = 5 // 点长 240ms
	analyzer := NewAdaptiveTimingAnalyzer(cfg)

	// 400ms 的音调意味着 3 WPM，低于下限，整次更新必须丢弃
	for _, ev := range keyEvents(repeatDots(30, 0.400)) {
		analyzer.Analyze(ev)
	}

	if analyzer.IsLocked() {
		t.Fatal("sender below MinWPM must never lock")
	}
	stats := analyzer.TimingStats()
	if math.Abs(stats.WPM-5) > 1e-9 {
		t.Errorf("WPM %v, rejected updates must not move the estimate", stats.WPM)
	}
	if analyzer.lockCounter != 0 {
		t.Errorf("lockCounter %d, want 0", analyzer.lockCounter)
	}
}

func TestTimingAnalyzer_InitialEstimateNeedsTwoSamples(t *testing.T) {
	cfg := DefaultConfig() // 初始 20 WPM
	analyzer := NewAdaptiveTimingAnalyzer(cfg)

	// 单个样本不建立估计
	analyzer.Analyze(ToneEvent{ToneOn: true, Timestamp: 0})
	analyzer.Analyze(ToneEvent{ToneOn: false, Timestamp: 0.048})
	if stats := analyzer.TimingStats(); math.Abs(stats.WPM-20) > 1e-9 {
		t.Fatalf("WPM %v after one sample, want untouched 20", stats.WPM)
	}

	// 第二个样本直接落位到发送速度，而不是从初始值缓慢平滑过去
	analyzer.Analyze(ToneEvent{ToneOn: true, Timestamp: 0.096})
	analyzer.Analyze(ToneEvent{ToneOn: false, Timestamp: 0.144})
	if stats := analyzer.TimingStats(); math.Abs(stats.WPM-25) > 1e-6 {
		t.Errorf("WPM %v after seeding, want 25", stats.WPM)
	}
	if analyzer.IsLocked() {
		t.Error("two samples must not lock")
	}
	if analyzer.lockCounter != 1 {
		t.Errorf("lockCounter %d after seeding, want 1", analyzer.lockCounter)
	}
}

func TestTimingAnalyzer_UnstableUpdateDecrementsLock(t *testing.T) {
	analyzer := NewAdaptiveTimingAnalyzer(DefaultConfig())
	analyzer.estimated = true
	analyzer.dotDuration = 0.040 // 30 WPM
	analyzer.lastWPM = 30
	analyzer.lockCounter = 3

	// 速度跳变只把计数减一，不清零重来
	analyzer.updateEstimate(0.060)
	if analyzer.lockCounter != 2 {
		t.Errorf("lockCounter %d after unstable update, want 2", analyzer.lockCounter)
	}
	if analyzer.IsLocked() {
		t.Error("unexpected lock")
	}
}

func TestTimingAnalyzer_SpeedSwitchTracksSlower(t *testing.T) {
	cfg := DefaultConfig()
	analyzer := NewAdaptiveTimingAnalyzer(cfg)

	// 20 WPM 锁定后切到 15 WPM (80ms 点长)，估计要跟过去
	durations := repeatDots(20, 0.060)
	durations = append(durations, 0.180)
	durations = append(durations, repeatDots(30, 0.080)...)

	split := 0
	var before *TimingStats
	for _, ev := range keyEvents(durations) {
		analyzer.Analyze(ev)
		split++
		if split == 40 { // 第 20 个点收尾，20 WPM 段结束
			before = analyzer.TimingStats()
			if !analyzer.IsLocked() {
				t.Fatal("precondition: locked at 20 WPM")
			}
		}
	}

	after := analyzer.TimingStats()
	if after.DotDuration <= before.DotDuration {
		t.Errorf("dot duration %v -> %v, should increase after slowdown",
			before.DotDuration, after.DotDuration)
	}
	if after.WPM >= before.WPM {
		t.Errorf("WPM %v -> %v, should decrease after slowdown", before.WPM, after.WPM)
	}
	if after.WPM < 14 || after.WPM > 16.5 {
		t.Errorf("WPM %v after 30 dots at 15 WPM", after.WPM)
	}
}

func TestTimingAnalyzer_FlushCompletesPendingTone(t *testing.T) {
	analyzer := NewAdaptiveTimingAnalyzer(fixedConfig()) // 20 WPM: dot 60ms
	decoder := NewTableDecoder()

	// 两个点之后流在音调中断掉: 补一个划和字符间隔应解出 U
	events := []ToneEvent{
		{ToneOn: true, Timestamp: 0},
		{ToneOn: false, Timestamp: 0.060},
		{ToneOn: true, Timestamp: 0.120},
		{ToneOn: false, Timestamp: 0.180},
		{ToneOn: true, Timestamp: 0.240},
	}
	var chars []DecodedCharacter
	for _, ev := range events {
		chars = append(chars, decoder.Decode(analyzer.Analyze(ev))...)
	}

	symbols := analyzer.Flush()
	if len(symbols) != 2 || symbols[0].Element != Dash || symbols[1].Element != CharGap {
		t.Fatalf("flush produced %v, want synthetic dash and char gap", symbols)
	}
	chars = append(chars, decoder.Decode(symbols)...)
	if len(chars) != 1 || chars[0].Char != "U" {
		t.Errorf("decoded %v, want the final U", chars)
	}

	// 再次清算不应重复产出
	if again := analyzer.Flush(); len(again) != 0 {
		t.Errorf("second flush produced %v", again)
	}
}
