package main

import (
	"strings"

	"github.com/favbox/windx/app/server"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func routesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "列出演示服务注册的路由",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(configPath)
			if err != nil {
				return err
			}
			opts, err := server.FileOptions(f)
			if err != nil {
				return err
			}
			opts = append(opts, server.WithDisablePrintRoute(true))

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Kind", "Path", "Timeout", "Middleware"})
			for _, r := range newDemo(opts...).Routes() {
				timeout := "-"
				if r.Timeout > 0 {
					timeout = r.Timeout.String()
				}
				t.AppendRow(table.Row{r.Name, string(r.Kind), r.Path, timeout, strings.Join(r.Middleware.Names(), ", ")})
			}
			t.AppendFooter(table.Row{"", "", "", "Total", t.Length()})
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML 配置文件路径")

	return cmd
}
