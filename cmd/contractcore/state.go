package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/weisyn/contractcore/internal/app"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

var (
	setValueHex   bool
	migrateRename []string
	migrateAdd    []string
	migrateRemove []string
)

// stateCmd 当前状态
var stateCmd = &cobra.Command{
	Use:   "state <address>",
	Short: "显示当前状态",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			view, ok := a.Runtime.GetContractState(address)
			if !ok {
				return types.ErrNotFound.With("contract %s has no state", address)
			}
			if view.Unreliable {
				pterm.Warning.Println("合约处于隔离状态，读取结果可能不可信")
			}
			data := pterm.TableData{{"键", "值 (十六进制)"}}
			for _, e := range view.Entries {
				data = append(data, []string{string(e.Key), hex.EncodeToString(e.Value)})
			}
			pterm.Info.Printf("%d 个条目，%d 字节\n", len(view.Entries), view.Size)
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		})
	},
}

// snapshotsCmd 快照列表
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <address>",
	Short: "列出状态快照",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			data := pterm.TableData{{"ID", "序号", "版本", "时间", "条目", "状态哈希"}}
			for _, s := range a.Runtime.GetStateSnapshots(address) {
				data = append(data, []string{
					s.ID, fmt.Sprint(s.Seq), s.Version, formatUnix(s.Timestamp),
					fmt.Sprint(len(s.Entries)), hex.EncodeToString(s.StateHash[:8]),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		})
	},
}

// restoreCmd 从快照恢复
var restoreCmd = &cobra.Command{
	Use:   "restore <address> <snapshot-id>",
	Short: "用快照恢复状态并解除隔离",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		caller, err := callerAccount()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Runtime.RestoreContractState(ctx, caller, address, args[1]); err != nil {
				return err
			}
			pterm.Success.Printf("%s 已恢复到快照 %s\n", address, args[1])
			return nil
		})
	},
}

// setCmd 管理员直接写入
var setCmd = &cobra.Command{
	Use:   "set <address> <key> <value>",
	Short: "管理员直接写入状态",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		caller, err := callerAccount()
		if err != nil {
			return err
		}
		value := []byte(args[2])
		if setValueHex {
			if value, err = decodeHex(args[2]); err != nil {
				return fmt.Errorf("解析值失败: %w", err)
			}
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Runtime.UpdateContractState(ctx, caller, address, []byte(args[1]), value); err != nil {
				return err
			}
			pterm.Success.Printf("%s: 已写入 %s\n", address, args[1])
			return nil
		})
	},
}

// migrateCmd 字段级迁移，步骤顺序为 rename、add、remove
var migrateCmd = &cobra.Command{
	Use:   "migrate <address>",
	Short: "迁移状态字段，任一步失败则不生效",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		caller, err := callerAccount()
		if err != nil {
			return err
		}
		steps, err := migrationSteps()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Runtime.MigrateContractState(ctx, caller, address, steps); err != nil {
				return err
			}
			pterm.Success.Printf("%s: 已应用 %d 个迁移步骤\n", address, len(steps))
			return nil
		})
	},
}

func migrationSteps() ([]types.MigrationStep, error) {
	var steps []types.MigrationStep
	for _, r := range migrateRename {
		from, to, ok := strings.Cut(r, ":")
		if !ok {
			return nil, fmt.Errorf("--rename 格式应为 old:new，得到 %q", r)
		}
		steps = append(steps, types.Rename(from, to))
	}
	for _, kv := range migrateAdd {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--add 格式应为 key=value，得到 %q", kv)
		}
		steps = append(steps, types.AddWithDefault(k, []byte(v)))
	}
	for _, k := range migrateRemove {
		steps = append(steps, types.Remove(k))
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("至少需要一个迁移步骤")
	}
	return steps, nil
}

func init() {
	setCmd.Flags().BoolVar(&setValueHex, "hex", false, "值为十六进制")
	migrateCmd.Flags().StringArrayVar(&migrateRename, "rename", nil, "重命名字段 old:new")
	migrateCmd.Flags().StringArrayVar(&migrateAdd, "add", nil, "新增字段 key=default")
	migrateCmd.Flags().StringArrayVar(&migrateRemove, "remove", nil, "删除字段")
}
