package cwave

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// captureQueueDepth 采集回调和读取循环之间的缓冲队列深度
const captureQueueDepth = 10

// CaptureSource 从声卡实时采集音频并重组为固定大小的块
// 采集回调在驱动线程上运行，数据经有界队列交给读取方；
// 队列满时丢弃最新数据，绝不阻塞回调
type CaptureSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	sampleRate int
	chunkSize  int

	queue  chan []float64
	buffer []float64

	chunkIndex int
	dropped    int

	closed    chan struct{}
	closeOnce sync.Once
}

// NewCaptureSource 初始化采集设备
// deviceName 非空时按子串匹配选择输入设备，否则用系统默认
func NewCaptureSource(deviceName string, config *Config) (*CaptureSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	s := &CaptureSource{
		ctx:        ctx,
		sampleRate: config.SampleRate,
		chunkSize:  config.ChunkSize,
		queue:      make(chan []float64, captureQueueDepth),
		closed:     make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(config.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if deviceName != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(deviceName)) {
					deviceConfig.Capture.DeviceID = info.ID.Pointer()
					break
				}
			}
		}
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if len(pInputSamples) == 0 {
			return
		}
		raw := unsafe.Slice((*float32)(unsafe.Pointer(&pInputSamples[0])), int(framecount))
		samples := make([]float64, len(raw))
		for i, v := range raw {
			samples[i] = float64(v)
		}
		select {
		case s.queue <- samples:
		default:
			// 读取方跟不上，丢弃而不是阻塞驱动线程
			s.dropped++
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("start capture: %w", err)
	}
	return s, nil
}

// ReadChunk 阻塞等待足够的采样后返回一个定长块
// Close 之后返回 io.EOF
func (s *CaptureSource) ReadChunk() (AudioChunk, error) {
	for len(s.buffer) < s.chunkSize {
		select {
		case samples := <-s.queue:
			s.buffer = append(s.buffer, samples...)
		case <-s.closed:
			return AudioChunk{}, io.EOF
		}
	}

	data := make([]float64, s.chunkSize)
	copy(data, s.buffer[:s.chunkSize])
	s.buffer = s.buffer[s.chunkSize:]

	chunk := AudioChunk{
		Data:       data,
		SampleRate: s.sampleRate,
		Timestamp:  float64(s.chunkIndex) * float64(s.chunkSize) / float64(s.sampleRate),
	}
	s.chunkIndex++
	return chunk, nil
}

// Dropped 返回因队列溢出丢弃的回调批次数
func (s *CaptureSource) Dropped() int {
	return s.dropped
}

// Close 停止采集并释放设备
func (s *CaptureSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.device != nil {
			s.device.Uninit()
			s.device = nil
		}
		if s.ctx != nil {
			_ = s.ctx.Uninit()
			s.ctx.Free()
			s.ctx = nil
		}
	})
	return nil
}
