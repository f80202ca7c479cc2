package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/weisyn/contractcore/internal/app"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// versionFlags deploy/upgrade 共用的版本标志
type versionFlags struct {
	abiFile     string
	version     string
	description string
	author      string
	upgradeable bool
}

var (
	deployFlags  versionFlags
	upgradeFlags versionFlags
	deployLimits types.ResourceLimits

	callArgs    string
	callArgsHex string
	callGas     uint64
)

func (f *versionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.abiFile, "abi", "", "ABI 描述文件 (JSON)")
	cmd.Flags().StringVar(&f.version, "version", "", "语义化版本号")
	cmd.Flags().StringVar(&f.description, "description", "", "版本描述")
	cmd.Flags().StringVar(&f.author, "author", "", "作者公钥 (十六进制)")
	cmd.Flags().BoolVar(&f.upgradeable, "upgradeable", true, "是否允许后续升级")
	_ = cmd.MarkFlagRequired("abi")
	_ = cmd.MarkFlagRequired("version")
}

// load 读取字节码与ABI并组装元数据
func (f *versionFlags) load(wasmFile string) ([]byte, types.ABI, types.Metadata, error) {
	var abi types.ABI
	code, err := os.ReadFile(filepath.Clean(wasmFile))
	if err != nil {
		return nil, abi, types.Metadata{}, fmt.Errorf("读取WASM文件失败: %w", err)
	}
	abi, err = readABI(f.abiFile)
	if err != nil {
		return nil, abi, types.Metadata{}, err
	}
	author, err := decodeHex(f.author)
	if err != nil {
		return nil, abi, types.Metadata{}, fmt.Errorf("解析 --author 失败: %w", err)
	}
	return code, abi, types.Metadata{
		Version:       f.version,
		Author:        author,
		Description:   f.description,
		IsUpgradeable: f.upgradeable,
	}, nil
}

func readABI(path string) (types.ABI, error) {
	var abi types.ABI
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return abi, fmt.Errorf("读取ABI文件失败: %w", err)
	}
	if err := json.Unmarshal(raw, &abi); err != nil {
		return abi, fmt.Errorf("解析ABI文件失败: %w", err)
	}
	return abi, nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}

// deployCmd 部署合约
var deployCmd = &cobra.Command{
	Use:   "deploy <address> <wasm-file>",
	Short: "部署合约首个版本",
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
		code, abi, metadata, err := deployFlags.load(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Runtime.DeployContract(ctx, contractif.DeployRequest{
				Address:  address,
				Bytecode: code,
				ABI:      abi,
				Metadata: metadata,
				Limits:   deployLimits,
				Caller:   caller,
			}); err != nil {
				return err
			}
			pterm.Success.Printf("已部署 %s 版本 %s\n", address, metadata.Version)
			return nil
		})
	},
}

// upgradeCmd 升级合约
var upgradeCmd = &cobra.Command{
	Use:   "upgrade <address> <wasm-file>",
	Short: "升级到新版本",
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
		code, abi, metadata, err := upgradeFlags.load(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Runtime.UpgradeContract(ctx, caller, address, code, abi, metadata); err != nil {
				return err
			}
			pterm.Success.Printf("%s 已升级到 %s\n", address, metadata.Version)
			return nil
		})
	},
}

// rollbackCmd 回滚到前一版本
var rollbackCmd = &cobra.Command{
	Use:   "rollback <address>",
	Short: "回滚到前一版本并恢复其状态",
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
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Runtime.RollbackContract(ctx, caller, address); err != nil {
				return err
			}
			latest, err := a.Runtime.Registry().GetLatest(address)
			if err != nil {
				return err
			}
			pterm.Success.Printf("%s 已回滚到 %s\n", address, latest.Metadata.Version)
			return nil
		})
	},
}

// callCmd 执行合约方法
var callCmd = &cobra.Command{
	Use:   "call <address> <method>",
	Short: "执行当前版本的方法",
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
		input := []byte(callArgs)
		if callArgsHex != "" {
			if input, err = decodeHex(callArgsHex); err != nil {
				return fmt.Errorf("解析 --args-hex 失败: %w", err)
			}
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out, err := a.Runtime.ExecuteContract(ctx, types.ExecutionRequest{
				Address:  address,
				Method:   args[1],
				Args:     input,
				Caller:   caller,
				GasLimit: callGas,
			})
			if err != nil {
				return err
			}
			data := pterm.TableData{{"字段", "值"}}
			data = append(data, []string{"gas_used", fmt.Sprint(out.GasUsed)})
			data = append(data, []string{"return", "0x" + hex.EncodeToString(out.ReturnValue)})
			for _, e := range out.Events {
				data = append(data, []string{"event:" + e.Name, "0x" + hex.EncodeToString(e.Data)})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		})
	},
}

// validateCmd 部署前校验
var validateCmd = &cobra.Command{
	Use:   "validate <wasm-file>",
	Short: "校验字节码是否满足调用约定",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(filepath.Clean(args[0]))
		if err != nil {
			return fmt.Errorf("读取WASM文件失败: %w", err)
		}
		abiFile, _ := cmd.Flags().GetString("abi")
		abi, err := readABI(abiFile)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Engine.Validate(ctx, code, abi, a.Options.DefaultLimits); err != nil {
				return err
			}
			pterm.Success.Printf("校验通过 (%d 字节, %d 个方法)\n", len(code), len(abi.Methods))
			return nil
		})
	},
}

func init() {
	deployFlags.register(deployCmd)
	deployCmd.Flags().Uint64Var(&deployLimits.MaxGas, "max-gas", 0, "单次调用gas上限 (0 使用默认值)")
	deployCmd.Flags().Uint64Var(&deployLimits.MaxMemory, "max-memory", 0, "线性内存字节上限 (0 使用默认值)")
	deployCmd.Flags().Uint64Var(&deployLimits.MaxStorage, "max-storage", 0, "状态总字节上限 (0 使用默认值)")
	deployCmd.Flags().Uint32Var(&deployLimits.MaxCallDepth, "max-call-depth", 0, "调用栈深度上限 (0 使用默认值)")

	upgradeFlags.register(upgradeCmd)

	callCmd.Flags().StringVar(&callArgs, "args", "", "参数 (原始字符串)")
	callCmd.Flags().StringVar(&callArgsHex, "args-hex", "", "参数 (十六进制，优先于 --args)")
	callCmd.Flags().Uint64Var(&callGas, "gas", 0, "gas 上限 (0 使用部署时的上限)")

	validateCmd.Flags().String("abi", "", "ABI 描述文件 (JSON)")
	_ = validateCmd.MarkFlagRequired("abi")
}
