package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"cwave"
)

func main() {
	var (
		configFile  string
		replayFile  string
		recordFile  string
		audioDevice string
		serialPort  string
		baudRate    int
		verbose     bool
	)

	pflag.StringVarP(&configFile, "config", "c", "", "YAML 配置文件路径")
	pflag.StringVarP(&replayFile, "file", "f", "", "从 WAV 文件回放解码")
	pflag.StringVarP(&recordFile, "record", "r", "", "把实时音频录制到 WAV 文件")
	pflag.StringVarP(&audioDevice, "device", "d", "", "输入设备名 (子串匹配)")
	pflag.StringVarP(&serialPort, "serial-port", "p", "", "CI-V 串口路径")
	pflag.IntVarP(&baudRate, "baud", "b", 115200, "CI-V 串口波特率")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg := cwave.DefaultConfig()
	if configFile != "" {
		loaded, err := cwave.LoadConfig(configFile)
		if err != nil {
			logger.Fatal("load config", "err", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "err", err)
	}

	system, err := cwave.NewDecoderSystem(cfg, logger)
	if err != nil {
		logger.Fatal("init decoder", "err", err)
	}
	system.ReplayFile = replayFile
	system.RecordFile = recordFile
	system.AudioDeviceName = audioDevice
	system.SerialPort = serialPort
	system.BaudRate = baudRate

	system.OnCharacter = func(c cwave.DecodedCharacter) {
		fmt.Print(c.Char)
	}

	if err := system.Start(); err != nil {
		logger.Fatal("start", "err", err)
	}
	defer system.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := system.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("decoder stopped", "err", err)
		os.Exit(1)
	}
	fmt.Println()
}
