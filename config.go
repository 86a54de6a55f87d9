package cwave

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 集中管理解码流水线的所有可调参数
// 所有约束在构造/加载时立即校验，流水线启动后不再检查
type Config struct {
	// --- 音频 ---
	SampleRate int `yaml:"sample_rate"` // 采样率 (Hz)
	ChunkSize  int `yaml:"chunk_size"`  // 每次处理的采样点数

	// --- 频率检测 ---
	MinFrequency float64 `yaml:"min_frequency"` // 搜索下限 (Hz)，用于屏蔽低频底噪
	MaxFrequency float64 `yaml:"max_frequency"` // 搜索上限 (Hz)
	MinSNRdB     float64 `yaml:"min_snr_db"`    // 触发检测所需的最小信噪比 (dB)

	// --- 带通滤波 ---
	FilterBandwidth float64 `yaml:"filter_bandwidth"` // 带宽 (Hz)，中心频率由检测器提供

	// --- AGC ---
	AGCTarget    float64 `yaml:"agc_target"`     // 目标输出电平 (0.0 - 1.0)
	AGCAttackMs  float64 `yaml:"agc_attack_ms"`  // 起音时间 (毫秒)，快速响应信号增强
	AGCReleaseMs float64 `yaml:"agc_release_ms"` // 释放时间 (毫秒)，缓慢跟随信号减弱

	// --- 静噪 ---
	SquelchThreshold  float64 `yaml:"squelch_threshold"`  // RMS 门限 (0.0 - 1.0)
	SquelchHysteresis float64 `yaml:"squelch_hysteresis"` // 迟滞宽度，防止门限附近抖动

	// --- 音调检测 ---
	ToneThreshold float64 `yaml:"tone_threshold"` // 动态范围不足时的固定包络门限

	// --- WPM ---
	InitialWPM     float64 `yaml:"initial_wpm"` // 自举时假定的初始速度
	MinWPM         float64 `yaml:"min_wpm"`     // 自适应估计的下限
	MaxWPM         float64 `yaml:"max_wpm"`     // 自适应估计的上限
	AdaptiveTiming bool    `yaml:"adaptive_timing"`
}

// DefaultConfig 返回一套经过验证的默认参数
// 8kHz / 256 点一块 (32ms)，覆盖常见的 5-55 WPM 手键和键控器速度
func DefaultConfig() *Config {
	return &Config{
		SampleRate:        8000,
		ChunkSize:         256,
		MinFrequency:      200.0,
		MaxFrequency:      1200.0,
		MinSNRdB:          6.0,
		FilterBandwidth:   200.0,
		AGCTarget:         0.5,
		AGCAttackMs:       10.0,
		AGCReleaseMs:      100.0,
		SquelchThreshold:  0.05,
		SquelchHysteresis: 0.02,
		ToneThreshold:     0.1,
		InitialWPM:        20.0,
		MinWPM:            5.0,
		MaxWPM:            55.0,
		AdaptiveTiming:    true,
	}
}

// LoadConfig 从 YAML 文件加载配置，未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 校验所有参数约束，任何一条不满足都直接拒绝启动
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.MinFrequency < 0 {
		return fmt.Errorf("minimum frequency must be non-negative, got %g", c.MinFrequency)
	}
	if c.MaxFrequency <= c.MinFrequency {
		return fmt.Errorf("maximum frequency must be greater than minimum, got %g <= %g",
			c.MaxFrequency, c.MinFrequency)
	}
	if c.MinSNRdB < 0 {
		return fmt.Errorf("minimum SNR must be non-negative, got %g", c.MinSNRdB)
	}
	if c.FilterBandwidth <= 0 {
		return fmt.Errorf("filter bandwidth must be positive, got %g", c.FilterBandwidth)
	}
	if c.AGCTarget < 0 || c.AGCTarget > 1 {
		return fmt.Errorf("AGC target must be in [0, 1], got %g", c.AGCTarget)
	}
	if c.AGCAttackMs <= 0 {
		return fmt.Errorf("AGC attack time must be positive, got %g", c.AGCAttackMs)
	}
	if c.AGCReleaseMs <= 0 {
		return fmt.Errorf("AGC release time must be positive, got %g", c.AGCReleaseMs)
	}
	if c.SquelchThreshold < 0 || c.SquelchThreshold > 1 {
		return fmt.Errorf("squelch threshold must be in [0, 1], got %g", c.SquelchThreshold)
	}
	if c.SquelchHysteresis < 0 || c.SquelchHysteresis > 1 {
		return fmt.Errorf("squelch hysteresis must be in [0, 1], got %g", c.SquelchHysteresis)
	}
	if c.ToneThreshold < 0 || c.ToneThreshold > 1 {
		return fmt.Errorf("tone threshold must be in [0, 1], got %g", c.ToneThreshold)
	}
	if c.InitialWPM <= 0 {
		return fmt.Errorf("initial WPM must be positive, got %g", c.InitialWPM)
	}
	if c.MinWPM <= 0 {
		return fmt.Errorf("minimum WPM must be positive, got %g", c.MinWPM)
	}
	if c.MaxWPM <= c.MinWPM {
		return fmt.Errorf("maximum WPM must be greater than minimum, got %g <= %g",
			c.MaxWPM, c.MinWPM)
	}
	return nil
}

// Nyquist 返回配置采样率对应的奈奎斯特频率
func (c *Config) Nyquist() float64 {
	return float64(c.SampleRate) / 2.0
}

// ChunkDuration 返回单个音频块的时长 (秒)
func (c *Config) ChunkDuration() float64 {
	return float64(c.ChunkSize) / float64(c.SampleRate)
}

// ValidWPM 判断 WPM 是否落在配置范围内
func (c *Config) ValidWPM(wpm float64) bool {
	return wpm >= c.MinWPM && wpm <= c.MaxWPM
}
