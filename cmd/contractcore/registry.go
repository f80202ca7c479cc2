package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/weisyn/contractcore/internal/app"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

func formatUnix(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// versionsCmd 列出全部版本
var versionsCmd = &cobra.Command{
	Use:   "versions <address>",
	Short: "按注册顺序列出版本",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			reg := a.Runtime.Registry()
			versions, err := reg.ListVersions(address)
			if err != nil {
				return err
			}
			latest, err := reg.GetLatest(address)
			if err != nil {
				return err
			}
			data := pterm.TableData{{"", "版本", "代码哈希", "可升级", "创建时间", "描述"}}
			for _, v := range versions {
				mark := ""
				if v.Metadata.Version == latest.Metadata.Version {
					mark = "*"
				}
				data = append(data, []string{
					mark,
					v.Metadata.Version,
					hex.EncodeToString(v.CodeHash[:8]),
					fmt.Sprint(v.Metadata.IsUpgradeable),
					formatUnix(v.Metadata.CreatedAt),
					v.Metadata.Description,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		})
	},
}

// historyCmd 升级历史
var historyCmd = &cobra.Command{
	Use:   "history <address>",
	Short: "升级与回滚历史",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			records, err := a.Runtime.Registry().UpgradeHistory(address)
			if err != nil {
				return err
			}
			data := pterm.TableData{{"时间", "从", "到", "成功", "回滚"}}
			for _, r := range records {
				data = append(data, []string{
					formatUnix(r.Timestamp), r.From, r.To, fmt.Sprint(r.Successful), fmt.Sprint(r.RolledBack),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		})
	},
}

// searchCmd 按描述搜索
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "按当前版本描述搜索合约（不区分大小写）",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return renderContracts(a.Runtime.Registry().SearchByDescription(args[0]))
		})
	},
}

// listCmd 列出全部合约
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "按注册顺序列出合约",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			reg := a.Runtime.Registry()
			var infos []types.ContractInfo
			for _, address := range reg.ListContracts() {
				latest, err := reg.GetLatest(address)
				if err != nil {
					return err
				}
				infos = append(infos, types.ContractInfo{Address: address, Current: latest})
			}
			return renderContracts(infos)
		})
	},
}

func renderContracts(infos []types.ContractInfo) error {
	if len(infos) == 0 {
		pterm.Info.Println("没有匹配的合约")
		return nil
	}
	data := pterm.TableData{{"地址", "base58", "版本", "描述"}}
	for _, info := range infos {
		data = append(data, []string{
			info.Address.String(), info.Address.Base58(), info.Current.Metadata.Version, info.Current.Metadata.Description,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
