// Package wasm 基于 wazero 的合约沙箱
//
// 只链接宿主模块 env（gas、storage_read、storage_write、emit_event），不提供
// WASI、时钟或随机数，同一输入的执行结果在所有节点上一致。
//
// 调用约定：
//   - 合约导出 memory 以及每个ABI方法对应的函数
//   - 方法签名为 () 或 (i32 args_len)；返回值为空、i32（4字节小端）或
//     i64 打包的返回缓冲区 (ptr<<32 | len)
//   - 参数在调用前复制到 [0, BufferSize)；storage_read 把值写到
//     [BufferSize, 2*BufferSize) 并返回长度，键不存在返回 -1
package wasm

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	logpkg "github.com/weisyn/contractcore/internal/core/infrastructure/log"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// wasmPageSize 线性内存页大小
const wasmPageSize = 65536

// WazeroSandbox 基于wazero的沙箱实现
//
// 运行时与宿主模块在创建时初始化一次；宿主函数从 ctx 取得本次调用的状态，
// 因此同一个运行时可被多个地址并发使用。
type WazeroSandbox struct {
	logger log.Logger

	runtime     wazero.Runtime
	bufferSize  uint32
	execTimeout time.Duration

	// compileCtx 携带调用深度监听器，编译时绑定到每个函数
	compileCtx context.Context

	// 已编译模块，按代码哈希缓存
	compiled *moduleCache
}

var _ contractif.Sandbox = (*WazeroSandbox)(nil)

// New 创建沙箱并实例化宿主模块 env
func New(options *contractconfig.ContractOptions, logger log.Logger) (*WazeroSandbox, error) {
	if options == nil {
		options = contractconfig.Default()
	}
	ctx := context.Background()

	var config wazero.RuntimeConfig
	if options.UseCompiler {
		config = wazero.NewRuntimeConfigCompiler()
	} else {
		config = wazero.NewRuntimeConfigInterpreter()
	}
	if pages := memoryLimitPages(options.CeilingMaxMemory); pages > 0 {
		config = config.WithMemoryLimitPages(pages)
	}
	config = config.WithCloseOnContextDone(true)

	s := &WazeroSandbox{
		logger:     logpkg.NewModuleLogger(logger, "contract.sandbox"),
		runtime:     wazero.NewRuntimeWithConfig(ctx, config),
		bufferSize:  uint32(options.BufferSize),
		execTimeout: options.ExecutionTimeout,
		compileCtx:  experimental.WithFunctionListenerFactory(ctx, depthListenerFactory{}),
		compiled:    newModuleCache(options.MaxCompiledModules),
	}
	if err := s.instantiateHost(ctx); err != nil {
		_ = s.runtime.Close(ctx)
		return nil, err
	}
	return s, nil
}

func memoryLimitPages(ceiling uint64) uint32 {
	pages := ceiling / wasmPageSize
	if pages > 65536 {
		pages = 65536
	}
	return uint32(pages)
}

// Load 编译并缓存；已缓存时直接返回
func (s *WazeroSandbox) Load(ctx context.Context, codeHash [32]byte, bytecode []byte) error {
	entry, err := s.load(ctx, codeHash, bytecode)
	if err != nil {
		return err
	}
	s.compiled.release(ctx, entry)
	return nil
}

// load 返回的条目持有一个引用，调用方用完须 release
func (s *WazeroSandbox) load(ctx context.Context, codeHash [32]byte, bytecode []byte) (*cachedModule, error) {
	if entry, ok := s.compiled.acquire(codeHash); ok {
		return entry, nil
	}
	compiled, err := s.runtime.CompileModule(s.compileCtx, bytecode)
	if err != nil {
		return nil, types.ErrInvalidBytecode.Wrap(err, "compile")
	}
	entry, loaded := s.compiled.add(ctx, codeHash, compiled)
	if !loaded {
		s.logger.Debugf("合约模块已编译: code_hash=%x imports=%d cached=%d",
			codeHash[:8], len(compiled.ImportedFunctions()), s.compiled.size())
	}
	return entry, nil
}

// Call 实例化一个新的模块实例并调用方法
//
// 每次调用使用独立实例，调用结束后关闭；任何故障都在返回前转换为合约错误。
// 超过 ExecutionTimeout 的调用被中断并返回 Trap。
func (s *WazeroSandbox) Call(ctx context.Context, inv contractif.Invocation, host contractif.HostEnv) ([]byte, error) {
	if uint32(len(inv.Args)) > s.bufferSize {
		return nil, types.ErrInvalidInput.With("args size %d exceeds buffer %d", len(inv.Args), s.bufferSize)
	}
	if s.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.execTimeout)
		defer cancel()
	}
	entry, err := s.load(ctx, inv.CodeHash, inv.Bytecode)
	if err != nil {
		return nil, err
	}
	defer s.compiled.release(ctx, entry)

	state := &invocation{host: host, limits: inv.Limits, bufferSize: s.bufferSize}
	callCtx := withInvocation(ctx, state)

	mod, err := s.runtime.InstantiateModule(callCtx, entry.compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return nil, state.failure(ctx, err, "instantiate")
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(inv.Method)
	if fn == nil {
		return nil, types.ErrInvalidInput.With("method %q not exported", inv.Method)
	}
	mem := mod.Memory()
	if mem == nil {
		return nil, types.ErrInvalidBytecode.With("module does not export memory")
	}
	if len(inv.Args) > 0 && !mem.Write(0, inv.Args) {
		return nil, types.ErrTrap.With("args do not fit in memory")
	}

	var params []uint64
	if len(fn.Definition().ParamTypes()) == 1 {
		params = []uint64{uint64(len(inv.Args))}
	}
	results, err := fn.Call(callCtx, params...)
	if err != nil {
		return nil, state.failure(ctx, err, inv.Method)
	}
	if err := state.checkMemory(mod); err != nil {
		return nil, err
	}
	return decodeResult(mem, fn.Definition().ResultTypes(), results)
}

// decodeResult 按返回类型解码
func decodeResult(mem api.Memory, resultTypes []api.ValueType, results []uint64) ([]byte, error) {
	if len(resultTypes) == 0 || len(results) == 0 {
		return nil, nil
	}
	switch resultTypes[0] {
	case api.ValueTypeI32:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, api.DecodeU32(results[0]))
		return out, nil
	case api.ValueTypeI64:
		ptr, size := uint32(results[0]>>32), uint32(results[0])
		view, ok := mem.Read(ptr, size)
		if !ok {
			return nil, types.ErrTrap.With("return buffer [%d, %d) out of bounds", ptr, uint64(ptr)+uint64(size))
		}
		return append([]byte{}, view...), nil
	default:
		return nil, types.ErrTrap.With("unsupported result type %s", api.ValueTypeName(resultTypes[0]))
	}
}

// Close 关闭运行时，释放所有已编译模块
func (s *WazeroSandbox) Close(ctx context.Context) error {
	s.compiled.clear()
	return s.runtime.Close(ctx)
}
