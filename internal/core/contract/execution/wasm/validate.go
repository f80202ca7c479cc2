package wasm

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// Validate 编译字节码并检查导入、导出内存与方法签名
//
// 校验用的编译结果不进入缓存，部署成功后由 Load 按代码哈希缓存。
func (s *WazeroSandbox) Validate(ctx context.Context, bytecode []byte, methods []string, limits types.ResourceLimits) error {
	compiled, err := s.runtime.CompileModule(s.compileCtx, bytecode)
	if err != nil {
		return types.ErrInvalidBytecode.Wrap(err, "compile")
	}
	defer compiled.Close(ctx)

	if len(compiled.ImportedMemories()) > 0 {
		return types.ErrInvalidBytecode.With("imported memory is not allowed")
	}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != hostModule {
			return types.ErrInvalidBytecode.With("import %s.%s: only module %q is linked", module, name, hostModule)
		}
		sig, ok := hostSignatures[name]
		if !ok {
			return types.ErrInvalidBytecode.With("unknown host function %s.%s", module, name)
		}
		if !sameTypes(def.ParamTypes(), sig.params) || !sameTypes(def.ResultTypes(), sig.results) {
			return types.ErrInvalidBytecode.With("host function %s.%s has wrong signature", module, name)
		}
	}

	mem, ok := compiled.ExportedMemories()["memory"]
	if !ok {
		return types.ErrInvalidBytecode.With("module must export memory")
	}
	minBytes := uint64(mem.Min()) * wasmPageSize
	if minBytes < 2*uint64(s.bufferSize) {
		return types.ErrInvalidBytecode.With("memory of %d bytes cannot hold args and read buffers (%d bytes each)", minBytes, s.bufferSize)
	}
	if limits.MaxMemory > 0 && minBytes > limits.MaxMemory {
		return types.ErrResourceLimitExceeded.With("initial memory %d bytes exceeds max_memory %d", minBytes, limits.MaxMemory)
	}

	exported := compiled.ExportedFunctions()
	var missing []string
	for _, m := range methods {
		def, ok := exported[m]
		if !ok {
			missing = append(missing, m)
			continue
		}
		if !validMethodSignature(def) {
			return types.ErrInvalidBytecode.With("method %q must take () or (i32) and return nothing, i32 or i64", m)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return types.ErrInvalidBytecode.With("ABI methods not exported: %v", missing)
	}
	return nil
}

func validMethodSignature(def api.FunctionDefinition) bool {
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) > 1 || (len(params) == 1 && params[0] != api.ValueTypeI32) {
		return false
	}
	if len(results) > 1 {
		return false
	}
	return len(results) == 0 || results[0] == api.ValueTypeI32 || results[0] == api.ValueTypeI64
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
