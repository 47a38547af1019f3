// Package logx 配置标准库 log 的输出目标。
package logx

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Fantaskink/dunebot/internal/config"
)

// Setup 让标准 log 写到 stderr；配置了 log.file 时同时写入按大小轮转的文件。
// 返回的 closer 用于退出前关闭日志文件（无文件时是 no-op）。
func Setup(cfg config.LogConfig) (io.Closer, error) {
	w, closer, err := Writer(os.Stderr, cfg)
	if err != nil {
		return nil, err
	}
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags)
	if cfg.File != "" {
		log.Printf("[logx] logging to file: %s", cfg.File)
	}
	return closer, nil
}

// Writer 构造 base（+ 轮转文件）的组合 writer，不修改全局 logger。
func Writer(base io.Writer, cfg config.LogConfig) (io.Writer, io.Closer, error) {
	if cfg.File == "" {
		return base, nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, err
	}
	fw := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(base, fw), fw, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
