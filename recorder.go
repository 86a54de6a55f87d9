package cwave

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder 把流过解码器的音频同步写入 16-bit 单声道 WAV 文件
// 用于留存弱信号现场，方便调参后离线重放
type Recorder struct {
	file    *os.File
	encoder *wav.Encoder
	format  *audio.Format
}

// NewRecorder 创建录音文件
func NewRecorder(filename string, sampleRate int) (*Recorder, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return &Recorder{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, 16, 1, 1),
		format:  &audio.Format{NumChannels: 1, SampleRate: sampleRate},
	}, nil
}

// WriteChunk 追加一块音频，浮点采样限幅后量化为 16-bit
func (r *Recorder) WriteChunk(chunk AudioChunk) error {
	data := make([]int, len(chunk.Data))
	for i, v := range chunk.Data {
		if v > 1.0 {
			v = 1.0
		}
		if v < -1.0 {
			v = -1.0
		}
		data[i] = int(v * 32767.0)
	}
	return r.encoder.Write(&audio.IntBuffer{
		Format:         r.format,
		Data:           data,
		SourceBitDepth: 16,
	})
}

// Close 补写 WAV 头并关闭文件
func (r *Recorder) Close() error {
	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
