package cwave

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// DecoderSystem 管理完整解码会话的生命周期
// 负责组装音频源、流水线、可选的录音器和电台控制，
// 并在锁定状态变化时输出日志
type DecoderSystem struct {
	cfg      *Config
	logger   *log.Logger
	pipeline *Pipeline

	// 音频来源: 二选一
	ReplayFile      string
	AudioDeviceName string

	// CI-V 电台控制 (可选)
	SerialPort string
	BaudRate   int

	// 录音 (可选)
	RecordFile string

	source    AudioSource
	recorder  *Recorder
	catClient *CATClient

	// 解码出文本时回调
	OnCharacter func(DecodedCharacter)

	lastFreqLocked   bool
	lastTimingLocked bool
}

// NewDecoderSystem 创建系统实例
func NewDecoderSystem(cfg *Config, logger *log.Logger) (*DecoderSystem, error) {
	pipeline, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	return &DecoderSystem{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		BaudRate: 115200,
	}, nil
}

// Start 初始化音频源和外围组件
func (s *DecoderSystem) Start() error {
	// 电台可用时按其 CW 音调收窄搜索范围
	if s.SerialPort != "" && s.ReplayFile == "" {
		s.catClient = NewCATClient(s.SerialPort, s.BaudRate)
		if err := s.catClient.Open(); err != nil {
			s.logger.Warn("serial port unavailable", "port", s.SerialPort, "err", err)
			s.catClient = nil
		} else {
			s.applyRadioPitch()
		}
	}

	if s.ReplayFile != "" {
		source, err := NewWAVSource(s.ReplayFile, s.cfg)
		if err != nil {
			return fmt.Errorf("open replay file: %w", err)
		}
		s.source = source
		s.logger.Info("replay mode", "file", s.ReplayFile, "duration", fmt.Sprintf("%.1fs", source.Duration()))
	} else {
		source, err := NewCaptureSource(s.AudioDeviceName, s.cfg)
		if err != nil {
			return fmt.Errorf("start capture: %w", err)
		}
		s.source = source
		s.logger.Info("live capture", "rate", s.cfg.SampleRate)
	}

	if s.RecordFile != "" && s.ReplayFile == "" {
		recorder, err := NewRecorder(s.RecordFile, s.cfg.SampleRate)
		if err != nil {
			return err
		}
		s.recorder = recorder
		s.logger.Info("recording enabled", "file", s.RecordFile)
	}
	return nil
}

// applyRadioPitch 读取电台 CW 音调，把频率搜索范围收窄到其附近
func (s *DecoderSystem) applyRadioPitch() {
	if mode, err := s.catClient.ReadMode(); err == nil {
		s.logger.Info("radio connected", "mode", mode)
	}
	pitch, err := s.catClient.ReadCWPitch()
	if err != nil {
		s.logger.Warn("read cw pitch failed", "err", err)
		return
	}
	s.cfg.MinFrequency = pitch - 100
	if s.cfg.MinFrequency < 0 {
		s.cfg.MinFrequency = 0
	}
	s.cfg.MaxFrequency = pitch + 100
	s.logger.Info("search range from radio pitch", "pitch", pitch,
		"min", s.cfg.MinFrequency, "max", s.cfg.MaxFrequency)

	// 范围变了，流水线重新组装
	if pipeline, err := NewPipeline(s.cfg); err == nil {
		s.pipeline = pipeline
	}
}

// Run 驱动解码主循环直到音频耗尽或上下文取消
func (s *DecoderSystem) Run(ctx context.Context) error {
	if s.source == nil {
		return fmt.Errorf("system not started")
	}

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return ctx.Err()
		default:
		}

		chunk, err := s.source.ReadChunk()
		if err == io.EOF {
			s.flush()
			return nil
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}

		if s.recorder != nil {
			if err := s.recorder.WriteChunk(chunk); err != nil {
				s.logger.Warn("recording write failed", "err", err)
				s.recorder = nil
			}
		}

		for _, r := range s.pipeline.ProcessChunk(chunk) {
			s.emit(r)
		}
		s.logLockTransitions(s.pipeline.State())
	}
}

// flush 清算流水线并产出遗留字符
func (s *DecoderSystem) flush() {
	for _, r := range s.pipeline.Flush() {
		s.emit(r)
	}
}

func (s *DecoderSystem) emit(r Result) {
	if s.OnCharacter != nil {
		s.OnCharacter(r.Character)
	}
}

// logLockTransitions 锁定状态翻转时打一条日志
func (s *DecoderSystem) logLockTransitions(state DecoderState) {
	if state.FrequencyLocked != s.lastFreqLocked {
		if state.FrequencyLocked && state.SignalStats != nil {
			s.logger.Info("frequency locked",
				"freq", fmt.Sprintf("%.1fHz", state.SignalStats.Frequency),
				"snr", fmt.Sprintf("%.1fdB", state.SignalStats.SNRdB))
		} else if !state.FrequencyLocked {
			s.logger.Info("frequency unlocked")
		}
		s.lastFreqLocked = state.FrequencyLocked
	}
	if state.TimingLocked != s.lastTimingLocked {
		if state.TimingLocked && state.TimingStats != nil {
			s.logger.Info("timing locked", "wpm", fmt.Sprintf("%.1f", state.TimingStats.WPM))
		}
		s.lastTimingLocked = state.TimingLocked
	}
}

// State 返回流水线当前状态快照
func (s *DecoderSystem) State() DecoderState {
	return s.pipeline.State()
}

// Stop 释放全部资源
func (s *DecoderSystem) Stop() {
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			s.logger.Warn("close audio source", "err", err)
		}
		s.source = nil
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.Warn("close recording", "err", err)
		}
		s.recorder = nil
	}
	if s.catClient != nil {
		_ = s.catClient.Close()
		s.catClient = nil
	}
}
