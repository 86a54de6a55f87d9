package Filters

// LevelTracker 实现双路包络追踪，为音调检测提供自适应的底噪/峰值基准。
// floor 追踪底噪：电平更低时立即跳下去，更高时按 floorAlpha 缓慢上浮；
// ceiling 追踪信号顶部：电平更高时立即跳上去，更低时按 ceilingAlpha 缓慢回落。
// 两个方向的“立即跳变”保证衰落 (QSB) 和突发强信号都能被快速捕捉。
type LevelTracker struct {
	floorAlpha   float64
	ceilingAlpha float64

	floor   float64
	ceiling float64
	primed  bool
}

// NewLevelTracker 创建追踪器
// 块级调用 (每 20-40ms 一次) 推荐 floorAlpha=0.01, ceilingAlpha=0.05
func NewLevelTracker(floorAlpha, ceilingAlpha float64) *LevelTracker {
	return &LevelTracker{
		floorAlpha:   floorAlpha,
		ceilingAlpha: ceilingAlpha,
	}
}

// Update 输入当前电平，返回更新后的 (floor, ceiling)
func (t *LevelTracker) Update(level float64) (floor, ceiling float64) {
	if !t.primed {
		t.floor = level
		t.ceiling = level
		t.primed = true
		return t.floor, t.ceiling
	}

	if level < t.floor {
		t.floor = level
	} else {
		t.floor += t.floorAlpha * (level - t.floor)
	}

	if level > t.ceiling {
		t.ceiling = level
	} else {
		t.ceiling += t.ceilingAlpha * (level - t.ceiling)
	}

	// 防止浮点漂移造成交叉
	if t.floor > t.ceiling {
		t.floor = t.ceiling
	}

	return t.floor, t.ceiling
}

// Range 返回当前动态范围 ceiling - floor
func (t *LevelTracker) Range() float64 {
	return t.ceiling - t.floor
}

// Floor 返回当前底噪估计
func (t *LevelTracker) Floor() float64 {
	return t.floor
}

// Ceiling 返回当前峰值估计
func (t *LevelTracker) Ceiling() float64 {
	return t.ceiling
}

// Reset 清除追踪状态
func (t *LevelTracker) Reset() {
	t.floor = 0
	t.ceiling = 0
	t.primed = false
}
