package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/weisyn/contractcore/internal/app"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// roleCmd 角色管理
var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "角色管理",
	Long:  "角色可用预置名称 DEFAULT_ADMIN、DEPLOYER、EXECUTOR、UPGRADER 或 32 字节十六进制",
}

func parseRoleAccount(args []string) (types.Role, types.Account, error) {
	role, err := types.ParseRole(args[0])
	if err != nil {
		return role, types.Account{}, err
	}
	account, err := types.ParseAccount(args[1])
	return role, account, err
}

var roleGrantCmd = &cobra.Command{
	Use:   "grant <role> <account>",
	Short: "授予角色（首个超级管理员可自举）",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, account, err := parseRoleAccount(args)
		if err != nil {
			return err
		}
		caller, err := callerAccount()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			changed, err := a.Runtime.GrantRole(ctx, caller, role, account)
			if err != nil {
				return err
			}
			if !changed {
				pterm.Info.Printf("%s 已持有 %s\n", account, role)
				return nil
			}
			pterm.Success.Printf("已授予 %s 给 %s\n", role, account)
			return nil
		})
	},
}

var roleRevokeCmd = &cobra.Command{
	Use:   "revoke <role> <account>",
	Short: "撤销角色",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, account, err := parseRoleAccount(args)
		if err != nil {
			return err
		}
		caller, err := callerAccount()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			changed, err := a.Runtime.RevokeRole(ctx, caller, role, account)
			if err != nil {
				return err
			}
			if !changed {
				pterm.Info.Printf("%s 未持有 %s\n", account, role)
				return nil
			}
			pterm.Success.Printf("已撤销 %s 的 %s\n", account, role)
			return nil
		})
	},
}

var roleCheckCmd = &cobra.Command{
	Use:   "check <role> <account>",
	Short: "查询账户是否持有角色",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, account, err := parseRoleAccount(args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			pterm.Info.Printf("%s 持有 %s: %v\n", account, role, a.Runtime.HasRole(role, account))
			return nil
		})
	},
}

var roleMembersCmd = &cobra.Command{
	Use:   "members <role>",
	Short: "列出角色持有者与管理角色",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := types.ParseRole(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			acl := a.Runtime.AccessControl()
			pterm.Info.Printf("%s 的管理角色: %s\n", role, acl.GetRoleAdmin(role))
			data := pterm.TableData{{"账户"}}
			for _, m := range acl.RoleMembers(role) {
				data = append(data, []string{m.String()})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		})
	},
}

var roleSetAdminCmd = &cobra.Command{
	Use:   "set-admin <role> <admin-role>",
	Short: "修改角色的管理角色",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := types.ParseRole(args[0])
		if err != nil {
			return err
		}
		admin, err := types.ParseRole(args[1])
		if err != nil {
			return err
		}
		caller, err := callerAccount()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Runtime.AccessControl().SetRoleAdmin(ctx, role, admin, caller); err != nil {
				return err
			}
			pterm.Success.Printf("%s 的管理角色已改为 %s\n", role, admin)
			return nil
		})
	},
}

// auditCmd 角色审计日志
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "显示角色审计日志",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			entries, err := a.Runtime.AccessControl().AuditLog(ctx)
			if err != nil {
				return err
			}
			data := pterm.TableData{{"序号", "时间", "动作", "角色", "账户", "发起者"}}
			for _, e := range entries {
				role := e.Role.String()
				if e.AdminRole != nil {
					role = fmt.Sprintf("%s -> %s", role, e.AdminRole)
				}
				data = append(data, []string{
					fmt.Sprint(e.Seq), formatUnix(e.Timestamp), string(e.Action), role, e.Account.String(), e.Sender.String(),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		})
	},
}

func init() {
	roleCmd.AddCommand(roleGrantCmd, roleRevokeCmd, roleCheckCmd, roleMembersCmd, roleSetAdminCmd)
}
