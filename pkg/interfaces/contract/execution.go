package contract

import (
	"context"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// ExecutionEngine 在沙箱中执行当前版本的字节码
type ExecutionEngine interface {
	Execute(ctx context.Context, req types.ExecutionRequest) (*types.ExecutionOutcome, error)

	// Validate 部署前校验字节码与ABI是否满足调用约定
	Validate(ctx context.Context, bytecode []byte, abi types.ABI, limits types.ResourceLimits) error

	Close(ctx context.Context) error
}

// HostEnv 沙箱内代码可用的宿主能力
type HostEnv interface {
	// ChargeGas 扣减gas，超出预算时返回 OutOfGas
	ChargeGas(amount uint64) error
	StorageRead(key []byte) ([]byte, bool, error)
	StorageWrite(key, value []byte) error
	EmitEvent(name string, data []byte) error
}

// Invocation 单次沙箱调用
type Invocation struct {
	CodeHash [32]byte
	Bytecode []byte
	Method   string
	Args     []byte
	Limits   types.ResourceLimits
}

// Sandbox 可替换的沙箱后端
type Sandbox interface {
	// Validate 编译并检查导入导出；methods 为ABI声明的方法名
	Validate(ctx context.Context, bytecode []byte, methods []string, limits types.ResourceLimits) error

	// Load 预先编译并按代码哈希缓存，Call 未命中缓存时也会调用
	Load(ctx context.Context, codeHash [32]byte, bytecode []byte) error

	// Call 实例化并调用方法，返回值按调用约定解码
	Call(ctx context.Context, inv Invocation, host HostEnv) ([]byte, error)

	Close(ctx context.Context) error
}
