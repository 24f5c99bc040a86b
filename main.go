package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"authority/server"
)

// 入口：启动权威服务端与若干模拟客户端，运行固定时长后输出惩罚统计
func main() {
	cfg := server.DefaultConfig()
	envFile := ".env"
	// .env 与 AUTH_* 环境变量先生效，命令行参数最后覆盖
	if err := server.LoadEnv(&cfg, envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// 使用第三方 zap 日志库写入文件（带滚动），终端留给网格输出
	if err := server.InitLogger(cfg.LogOptions()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer server.SyncLogger()

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := server.NewSimulation(cfg, os.Stdout, nil)
	final, err := sim.Run(ctx)
	if err != nil {
		server.Log.Errorf("run: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	server.WriteSummary(os.Stdout, final)
}
