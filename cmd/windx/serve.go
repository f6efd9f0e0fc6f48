package main

import (
	"context"
	"time"

	"github.com/favbox/windx/app/server"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/hlog"
	"github.com/spf13/cobra"
)

// serveWaiter 非空时替换默认的退出信号等待。
var serveWaiter func(w *server.Wind, errCh chan error) error

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		exporter   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动演示服务",
		Long: "启动演示服务。\n\n" +
			"配置依次来自默认值、--config 指定的 YAML 文件和 WINDX_ 前缀的环境变量，\n" +
			"命令行参数优先级最高。",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				f.Server.Addr = addr
			}
			if exporter != "" {
				f.Exporter.Kind = exporter
			}
			return runServe(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML 配置文件路径")
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，覆盖配置文件，如 :8888")
	cmd.Flags().StringVar(&exporter, "exporter", "", "导出器：none、console、zap、otel")

	return cmd
}

func loadFile(path string) (*config.File, error) {
	return config.Load(path)
}

func runServe(cmd *cobra.Command, f *config.File) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts, err := server.FileOptions(f)
	if err != nil {
		return err
	}
	exporterInit, shutdown, err := newExporters(ctx, f.Exporter, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if exporterInit != nil {
		opts = append(opts, server.WithExporters(exporterInit))
	}

	w := newDemo(opts...)
	if serveWaiter != nil {
		w.SetCustomSignalWaiter(func(errCh chan error) error {
			return serveWaiter(w, errCh)
		})
	}
	w.Spin()

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = shutdown(sctx); err != nil {
		hlog.SystemLogger().Errorf("关闭导出器出错：%v", err)
	}
	return nil
}
