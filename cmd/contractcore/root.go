package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/weisyn/contractcore/internal/app"
	"github.com/weisyn/contractcore/internal/app/version"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigFile string // 配置文件
	DataDir    string // 数据目录，覆盖配置文件
	Backend    string // 存储后端，覆盖配置文件
	Caller     string // 调用者账户
}

var globalFlags GlobalFlags

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:     "contractcore",
	Short:   "合约版本注册与状态执行核心",
	Version: version.GetFullVersion(),
	Long: `contractcore - 版本化合约注册表与状态执行核心

- 部署、升级、回滚 WASM 合约
- 在 gas 与内存限制下执行合约方法
- 查看状态、快照并从快照恢复
- 管理角色并查看审计日志`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "配置文件路径 (JSON)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.DataDir, "data-dir", "", "数据目录 (默认: ./data)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Backend, "backend", "", "存储后端: badger|memory|redis")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Caller, "caller", "", "调用者账户 (0x十六进制或base58)")

	rootCmd.AddCommand(deployCmd, upgradeCmd, rollbackCmd, callCmd, validateCmd)
	rootCmd.AddCommand(versionsCmd, historyCmd, searchCmd, listCmd)
	rootCmd.AddCommand(stateCmd, snapshotsCmd, restoreCmd, setCmd, migrateCmd)
	rootCmd.AddCommand(roleCmd, auditCmd)
}

// withApp 启动应用执行一次操作
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	opts := []app.Option{app.WithConfigFile(globalFlags.ConfigFile)}
	if globalFlags.DataDir != "" {
		opts = append(opts, app.WithDataDir(globalFlags.DataDir))
	}
	if globalFlags.Backend != "" {
		opts = append(opts, app.WithStorageBackend(globalFlags.Backend))
	}
	return app.Run(cmd.Context(), func(ctx context.Context, a *app.App) error {
		err := fn(ctx, a)
		if readOnly, reason := a.Runtime.IsReadOnly(); readOnly {
			pterm.Warning.Printfln("存储写入失败，运行时已进入只读模式: %s", reason)
		}
		return err
	}, opts...)
}

// callerAccount 解析 --caller
func callerAccount() (types.Account, error) {
	if globalFlags.Caller == "" {
		return types.Account{}, fmt.Errorf("缺少 --caller")
	}
	return types.ParseAccount(globalFlags.Caller)
}
