package wasm

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/sys"

	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

type invocationKey struct{}

// invocation 单次调用的可变状态，只在调用所在的 goroutine 上访问
type invocation struct {
	host       contractif.HostEnv
	limits     types.ResourceLimits
	bufferSize uint32

	depth uint32
	// fault 第一个故障；宿主函数与监听器记录后 panic，由 wazero 转为调用错误
	fault error
}

func withInvocation(ctx context.Context, inv *invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

func invocationFrom(ctx context.Context) *invocation {
	inv, _ := ctx.Value(invocationKey{}).(*invocation)
	return inv
}

// abort 记录故障并中止当前调用
func (inv *invocation) abort(err error) {
	if inv.fault == nil {
		inv.fault = err
	}
	panic(inv.fault)
}

func (inv *invocation) memoryFault(mod api.Module) error {
	if mod == nil || inv.limits.MaxMemory == 0 {
		return nil
	}
	mem := mod.Memory()
	if mem == nil {
		return nil
	}
	if size := uint64(mem.Size()); size > inv.limits.MaxMemory {
		return types.ErrTrap.With("memory %d bytes exceeds limit %d", size, inv.limits.MaxMemory)
	}
	return nil
}

func (inv *invocation) checkMemory(mod api.Module) error {
	if err := inv.memoryFault(mod); err != nil {
		if inv.fault == nil {
			inv.fault = err
		}
		return inv.fault
	}
	return nil
}

// failure 将 wazero 返回的错误转换为合约错误
func (inv *invocation) failure(ctx context.Context, err error, what string) error {
	if inv.fault != nil {
		return inv.fault
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.ErrTrap.Wrap(ctxErr, "%s interrupted", what)
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return types.ErrTrap.Wrap(err, "%s exited with code %d", what, exitErr.ExitCode())
	}
	return types.ErrTrap.Wrap(err, "%s", what)
}

// depthListenerFactory 为每个合约内定义的函数挂载调用深度监听器
type depthListenerFactory struct{}

func (depthListenerFactory) NewFunctionListener(def api.FunctionDefinition) experimental.FunctionListener {
	if _, _, isImport := def.Import(); isImport {
		return nil
	}
	return depthListener{}
}

// depthListener 进入函数时深度加一，返回或中止时减一；同时检查内存上限
type depthListener struct{}

func (depthListener) Before(ctx context.Context, mod api.Module, def api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) {
	inv := invocationFrom(ctx)
	if inv == nil {
		return
	}
	inv.depth++
	if limit := inv.limits.MaxCallDepth; limit > 0 && inv.depth > limit {
		inv.abort(types.ErrCallDepthExceeded.With("depth %d exceeds %d at %s", inv.depth, limit, def.DebugName()))
	}
	if err := inv.memoryFault(mod); err != nil {
		inv.abort(err)
	}
}

func (depthListener) After(ctx context.Context, mod api.Module, _ api.FunctionDefinition, _ []uint64) {
	inv := invocationFrom(ctx)
	if inv == nil {
		return
	}
	inv.depth--
	if err := inv.memoryFault(mod); err != nil {
		inv.abort(err)
	}
}

func (depthListener) Abort(ctx context.Context, _ api.Module, _ api.FunctionDefinition, _ error) {
	if inv := invocationFrom(ctx); inv != nil && inv.depth > 0 {
		inv.depth--
	}
}
