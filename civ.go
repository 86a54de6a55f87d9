package cwave

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

const (
	civPreamble = 0xFE
	civEnd      = 0xFD
	civAddrRig  = 0x94 // ICOM 7300 默认地址
	civAddrPC   = 0xE0 // 控制器(PC) 默认地址
)

// SerialPort 串口操作接口，方便测试 Mock
type SerialPort interface {
	io.ReadWriteCloser
}

// CATClient 通过 CI-V 协议查询 ICOM 电台
// 解码前读取电台的 CW 音调设置，用来收窄频率搜索范围
type CATClient struct {
	Port     string
	BaudRate int
	conn     SerialPort
}

// NewCATClient 创建 CI-V 客户端
func NewCATClient(port string, baudRate int) *CATClient {
	return &CATClient{
		Port:     port,
		BaudRate: baudRate,
	}
}

// Open 打开串口连接
func (c *CATClient) Open() error {
	config := &serial.Config{
		Name:        c.Port,
		Baud:        c.BaudRate,
		ReadTimeout: time.Millisecond * 500,
	}
	s, err := serial.OpenPort(config)
	if err != nil {
		return err
	}
	c.conn = s
	return nil
}

// Close 关闭串口连接
func (c *CATClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// sendCommand 构造并发送一帧: FE FE [To] [From] [Cmd] [Sub...] FD
func (c *CATClient) sendCommand(cmd byte, subCmd []byte) error {
	if c.conn == nil {
		return fmt.Errorf("connection not open")
	}
	frame := []byte{civPreamble, civPreamble, civAddrRig, civAddrPC, cmd}
	frame = append(frame, subCmd...)
	frame = append(frame, civEnd)

	_, err := c.conn.Write(frame)
	return err
}

// ReadFrequency 读取当前工作频率 (Hz)
func (c *CATClient) ReadFrequency() (int, error) {
	// Cmd 0x03: 读频率，响应数据为 5 字节 BCD 低位在前
	if err := c.sendCommand(0x03, nil); err != nil {
		return 0, err
	}

	resp, err := c.readResponse(0x03)
	if err != nil {
		return 0, err
	}
	if len(resp) < 5 {
		return 0, fmt.Errorf("invalid frequency data length")
	}

	freq := 0
	multiplier := 1
	for i := 0; i < 5; i++ {
		freq += bcdToDecimal(resp[i]) * multiplier
		multiplier *= 100
	}
	return freq, nil
}

// ReadMode 读取当前模式 (LSB, USB, CW 等)
func (c *CATClient) ReadMode() (string, error) {
	if err := c.sendCommand(0x04, nil); err != nil {
		return "", err
	}

	resp, err := c.readResponse(0x04)
	if err != nil {
		return "", err
	}
	if len(resp) < 1 {
		return "", fmt.Errorf("invalid mode data")
	}

	modes := map[byte]string{
		0x00: "LSB", 0x01: "USB", 0x02: "AM", 0x03: "CW",
		0x04: "RTTY", 0x05: "FM", 0x07: "CW-R", 0x08: "RTTY-R",
		0x17: "DV",
	}
	if name, ok := modes[resp[0]]; ok {
		return name, nil
	}
	return fmt.Sprintf("Unknown(0x%02X)", resp[0]), nil
}

// ReadCWPitch 读取 CW 音调设置 (Hz)
// Cmd 0x14 Sub 0x09，响应是 2 字节 BCD 的 0000-0255，
// 线性映射到 300-900 Hz
func (c *CATClient) ReadCWPitch() (float64, error) {
	if err := c.sendCommand(0x14, []byte{0x09}); err != nil {
		return 0, err
	}

	resp, err := c.readResponse(0x14)
	if err != nil {
		return 0, err
	}
	// 响应数据部分: [0x09] [d1 d2]
	if len(resp) < 3 || resp[0] != 0x09 {
		return 0, fmt.Errorf("invalid pitch data")
	}

	raw := bcdToDecimal(resp[1])*100 + bcdToDecimal(resp[2])
	if raw > 255 {
		return 0, fmt.Errorf("pitch value out of range: %d", raw)
	}
	return 300.0 + float64(raw)*600.0/255.0, nil
}

// readResponse 读取并定位指定命令的响应帧，返回数据部分
// 串口可能回显发出的指令，按帧头 (To=PC) 过滤
func (c *CATClient) readResponse(expectedCmd byte) ([]byte, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("connection not open")
	}
	buf := make([]byte, 1024)
	n, err := c.conn.Read(buf)
	if err == io.EOF {
		return nil, fmt.Errorf("connection closed")
	}
	if n == 0 {
		return nil, fmt.Errorf("timeout or no data")
	}

	data := buf[:n]
	header := []byte{civPreamble, civPreamble, civAddrPC, civAddrRig, expectedCmd}
	idx := bytes.Index(data, header)
	if idx == -1 {
		return nil, fmt.Errorf("response header not found in: %s", hex.EncodeToString(data))
	}

	frame := data[idx:]
	endIdx := bytes.IndexByte(frame, civEnd)
	if endIdx == -1 {
		return nil, fmt.Errorf("frame end not found")
	}
	if endIdx <= 5 {
		return []byte{}, nil
	}
	return frame[5:endIdx], nil
}

func bcdToDecimal(b byte) int {
	return int((b>>4)*10 + (b & 0x0F))
}
