package cwave

import "cwave/Filters"

const (
	// toneThresholdRatio 门限在动态范围中的相对位置
	toneThresholdRatio = 0.45
	// toneHysteresisRatio 迟滞带宽占动态范围的比例
	toneHysteresisRatio = 0.2
	// toneMinRange 动态范围低于此值时退回固定门限
	toneMinRange = 0.1
	// levelFloorAlpha 噪底上升的平滑系数 (按块)
	levelFloorAlpha = 0.01
	// levelCeilingAlpha 峰值回落的平滑系数 (按块)
	levelCeilingAlpha = 0.05
)

// RMSToneDetector 块级音调检测器
// 跟踪每块 RMS 的动态范围，用自适应门限加迟滞判定键控开合
type RMSToneDetector struct {
	config  *Config
	levels  *Filters.LevelTracker
	toneOn  bool
	started bool
}

// NewRMSToneDetector 创建音调检测器
func NewRMSToneDetector(config *Config) *RMSToneDetector {
	return &RMSToneDetector{
		config: config,
		levels: Filters.NewLevelTracker(levelFloorAlpha, levelCeilingAlpha),
	}
}

// Detect 处理一块音频，键控状态翻转时返回一个事件
func (d *RMSToneDetector) Detect(chunk AudioChunk) []ToneEvent {
	if len(chunk.Data) == 0 {
		return nil
	}

	rms := chunk.RMS()
	d.levels.Update(rms)

	threshold, hysteresis := d.thresholds()

	newState := d.toneOn
	if d.toneOn {
		if rms < threshold-hysteresis {
			newState = false
		}
	} else {
		if rms > threshold+hysteresis {
			newState = true
		}
	}

	// 首块只建立初始状态，不产生事件
	if !d.started {
		d.started = true
		d.toneOn = newState
		if newState {
			return []ToneEvent{{ToneOn: true, Timestamp: chunk.Timestamp, Amplitude: rms}}
		}
		return nil
	}

	if newState == d.toneOn {
		return nil
	}
	d.toneOn = newState

	return []ToneEvent{{ToneOn: newState, Timestamp: chunk.Timestamp, Amplitude: rms}}
}

// thresholds 计算当前门限和迟滞
// 动态范围足够时用自适应门限，否则退回配置的固定门限
func (d *RMSToneDetector) thresholds() (threshold, hysteresis float64) {
	rng := d.levels.Range()
	if rng > toneMinRange {
		threshold = d.levels.Floor() + toneThresholdRatio*rng
		hysteresis = toneHysteresisRatio * rng
		return
	}
	threshold = d.config.ToneThreshold
	hysteresis = 0.5 * d.config.ToneThreshold
	return
}

// ToneOn 返回当前键控状态
func (d *RMSToneDetector) ToneOn() bool {
	return d.toneOn
}

// Reset 清空状态
func (d *RMSToneDetector) Reset() {
	d.levels.Reset()
	d.toneOn = false
	d.started = false
}
