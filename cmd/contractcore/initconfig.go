package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/weisyn/contractcore/configs"
)

var initConfigForce bool

// initConfigCmd 写出默认配置模板
var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "写出默认配置模板",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Clean(args[0])
		if _, err := os.Stat(path); err == nil && !initConfigForce {
			return fmt.Errorf("%s 已存在，使用 --force 覆盖", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
		if err := os.WriteFile(path, configs.Default, 0o600); err != nil {
			return fmt.Errorf("写入配置失败: %w", err)
		}
		pterm.Success.Printf("已写出 %s\n", path)
		return nil
	},
}

func init() {
	initConfigCmd.Flags().BoolVar(&initConfigForce, "force", false, "覆盖已存在的文件")
	rootCmd.AddCommand(initConfigCmd)
}
