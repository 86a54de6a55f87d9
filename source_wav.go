package cwave

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// WAVSource 从 WAV 文件提供固定大小的音频块
// 打开时整体解码: 多声道混合为单声道，按位深归一化，
// 采样率不匹配时做线性插值重采样
type WAVSource struct {
	samples    []float64
	sampleRate int
	chunkSize  int
	pos        int
	chunkIndex int
}

// NewWAVSource 打开 WAV 文件并准备按配置分块输出
func NewWAVSource(filename string, config *Config) (*WAVSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", filename)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("wav has no channels")
	}
	if decoder.BitDepth == 0 || decoder.BitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", decoder.BitDepth)
	}
	scale := math.Pow(2, float64(decoder.BitDepth-1))

	// 混合为单声道并归一化到 [-1, 1]
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		mono[i] = sum / float64(channels) / scale
	}

	if buf.Format.SampleRate != config.SampleRate {
		mono = resampleLinear(mono, buf.Format.SampleRate, config.SampleRate)
	}

	return &WAVSource{
		samples:    mono,
		sampleRate: config.SampleRate,
		chunkSize:  config.ChunkSize,
	}, nil
}

// ReadChunk 返回下一个定长块，数据耗尽时返回 io.EOF
// 末尾不足一块的部分补零
func (s *WAVSource) ReadChunk() (AudioChunk, error) {
	if s.pos >= len(s.samples) {
		return AudioChunk{}, io.EOF
	}

	data := make([]float64, s.chunkSize)
	n := copy(data, s.samples[s.pos:])
	s.pos += n

	chunk := AudioChunk{
		Data:       data,
		SampleRate: s.sampleRate,
		Timestamp:  float64(s.chunkIndex) * float64(s.chunkSize) / float64(s.sampleRate),
	}
	s.chunkIndex++
	return chunk, nil
}

// Duration 返回文件的总时长 (秒)
func (s *WAVSource) Duration() float64 {
	return float64(len(s.samples)) / float64(s.sampleRate)
}

// Close 释放资源 (数据已在内存中，无句柄可关)
func (s *WAVSource) Close() error {
	s.samples = nil
	return nil
}

// resampleLinear 线性插值重采样
func resampleLinear(in []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1.0-frac) + in[idx+1]*frac
	}
	return out
}
