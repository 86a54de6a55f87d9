package cwave

import (
	"context"
	"io"
	"math"
)

// retuneDriftHz 锁定后载波估计偏离带通中心超过该值时重新对准
const retuneDriftHz = 10.0

// Result 一个解码出的字符及产出时刻的流水线状态快照
type Result struct {
	Character DecodedCharacter
	State     DecoderState
}

// Pipeline 按块驱动完整的解码流水线
// 噪声抑制 -> 频率检测 -> (锁定后) 音调检测 -> 时序分析 -> 解码
// 唯一的反馈边是频率锁定触发带通重调
type Pipeline struct {
	config    *Config
	noise     *NoiseReducer
	frequency FrequencyDetector
	tone      ToneDetector
	timing    TimingAnalyzer
	decoder   Decoder

	lastSignal   *SignalStats
	wasLocked    bool
	charsDecoded int
}

// NewPipeline 校验配置并组装全部处理级
func NewPipeline(config *Config) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		config:    config,
		noise:     NewNoiseReducer(config),
		frequency: NewCarrierTracker(config),
		tone:      NewRMSToneDetector(config),
		timing:    NewAdaptiveTimingAnalyzer(config),
		decoder:   NewTableDecoder(),
	}, nil
}

// ProcessChunk 处理一块音频，返回由此产生的字符 (可能为空)
func (p *Pipeline) ProcessChunk(chunk AudioChunk) []Result {
	clean := p.noise.Process(chunk)

	// 频率检测始终运行，未锁定时负责搜索
	if stats := p.frequency.Detect(clean); stats != nil {
		p.lastSignal = stats
	}
	locked := p.frequency.IsLocked()

	// 刚锁定或载波漂移过大时重调带通
	if locked && p.lastSignal != nil {
		drift := math.Abs(p.lastSignal.Frequency - p.noise.Center())
		if !p.wasLocked || drift > retuneDriftHz {
			p.noise.Retune(p.lastSignal.Frequency)
		}
	}
	p.wasLocked = locked

	if !locked {
		return nil
	}

	var results []Result
	for _, event := range p.tone.Detect(clean) {
		symbols := p.timing.Analyze(event)
		results = append(results, p.decodeSymbols(symbols)...)
	}
	return results
}

// decodeSymbols 解码一批符号并为每个字符打上状态快照
func (p *Pipeline) decodeSymbols(symbols []MorseSymbol) []Result {
	if len(symbols) == 0 {
		return nil
	}
	var results []Result
	for _, char := range p.decoder.Decode(symbols) {
		p.charsDecoded++
		results = append(results, Result{
			Character: char,
			State:     p.snapshot(),
		})
	}
	return results
}

// snapshot 生成当前状态的深拷贝，避免后续块修改已产出的快照
func (p *Pipeline) snapshot() DecoderState {
	state := DecoderState{
		FrequencyLocked: p.frequency.IsLocked(),
		TimingLocked:    p.timing.IsLocked(),
		CharsDecoded:    p.charsDecoded,
	}
	if p.lastSignal != nil {
		sig := *p.lastSignal
		state.SignalStats = &sig
	}
	state.TimingStats = p.timing.TimingStats()
	return state
}

// State 返回当前状态快照
func (p *Pipeline) State() DecoderState {
	return p.snapshot()
}

// Flush 流结束时清算各级缓存，产出遗留的字符
func (p *Pipeline) Flush() []Result {
	var results []Result
	results = append(results, p.decodeSymbols(p.timing.Flush())...)
	for _, char := range p.decoder.Flush() {
		p.charsDecoded++
		results = append(results, Result{
			Character: char,
			State:     p.snapshot(),
		})
	}
	return results
}

// Run 从音频源循环读块直到 EOF 或上下文取消，字符通过回调产出
func (p *Pipeline) Run(ctx context.Context, source AudioSource, callback func(Result)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, err := source.ReadChunk()
		if err == io.EOF {
			for _, r := range p.Flush() {
				callback(r)
			}
			return nil
		}
		if err != nil {
			return err
		}

		for _, r := range p.ProcessChunk(chunk) {
			callback(r)
		}
	}
}

// Reset 按固定顺序重置全部处理级
func (p *Pipeline) Reset() {
	p.noise.Reset()
	p.frequency.Reset()
	p.tone.Reset()
	p.timing.Reset()
	p.decoder.Reset()
	p.lastSignal = nil
	p.wasLocked = false
	p.charsDecoded = 0
}
