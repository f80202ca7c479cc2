package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// 宿主模块名
const hostModule = "env"

// hostSignature 宿主函数签名，校验导入时使用
type hostSignature struct {
	params  []api.ValueType
	results []api.ValueType
}

var i32 = api.ValueTypeI32

var hostSignatures = map[string]hostSignature{
	"gas":           {params: []api.ValueType{i32}},
	"storage_read":  {params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}},
	"storage_write": {params: []api.ValueType{i32, i32, i32, i32}},
	"emit_event":    {params: []api.ValueType{i32, i32, i32, i32}},
}

// instantiateHost env 模块只实例化一次，函数从 ctx 取得调用状态
func (s *WazeroSandbox) instantiateHost(ctx context.Context) error {
	_, err := s.runtime.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().WithFunc(hostGas).Export("gas").
		NewFunctionBuilder().WithFunc(hostStorageRead).Export("storage_read").
		NewFunctionBuilder().WithFunc(hostStorageWrite).Export("storage_write").
		NewFunctionBuilder().WithFunc(hostEmitEvent).Export("emit_event").
		Instantiate(ctx)
	if err != nil {
		return types.ErrTrap.Wrap(err, "instantiate host module")
	}
	return nil
}

func mustInvocation(ctx context.Context) *invocation {
	inv := invocationFrom(ctx)
	if inv == nil {
		panic(types.ErrTrap.With("host call outside of an invocation"))
	}
	return inv
}

// readGuest 复制一段客户内存，越界时中止调用
func (inv *invocation) readGuest(mod api.Module, ptr, size uint32) []byte {
	view, ok := mod.Memory().Read(ptr, size)
	if !ok {
		inv.abort(types.ErrTrap.With("memory access [%d, %d) out of bounds", ptr, uint64(ptr)+uint64(size)))
	}
	return append([]byte{}, view...)
}

func hostGas(ctx context.Context, _ api.Module, amount uint32) {
	inv := mustInvocation(ctx)
	if err := inv.host.ChargeGas(uint64(amount)); err != nil {
		inv.abort(err)
	}
}

func hostStorageRead(ctx context.Context, mod api.Module, keyPtr, keyLen uint32) int32 {
	inv := mustInvocation(ctx)
	key := inv.readGuest(mod, keyPtr, keyLen)
	value, found, err := inv.host.StorageRead(key)
	if err != nil {
		inv.abort(err)
	}
	if !found {
		return -1
	}
	if uint32(len(value)) > inv.bufferSize {
		inv.abort(types.ErrStateAccess.With("value of %d bytes exceeds read buffer %d", len(value), inv.bufferSize))
	}
	if !mod.Memory().Write(inv.bufferSize, value) {
		inv.abort(types.ErrTrap.With("read buffer out of bounds"))
	}
	return int32(len(value))
}

func hostStorageWrite(ctx context.Context, mod api.Module, keyPtr, keyLen, valuePtr, valueLen uint32) {
	inv := mustInvocation(ctx)
	key := inv.readGuest(mod, keyPtr, keyLen)
	value := inv.readGuest(mod, valuePtr, valueLen)
	if err := inv.host.StorageWrite(key, value); err != nil {
		inv.abort(err)
	}
}

func hostEmitEvent(ctx context.Context, mod api.Module, namePtr, nameLen, dataPtr, dataLen uint32) {
	inv := mustInvocation(ctx)
	name := inv.readGuest(mod, namePtr, nameLen)
	data := inv.readGuest(mod, dataPtr, dataLen)
	if err := inv.host.EmitEvent(string(name), data); err != nil {
		inv.abort(err)
	}
}
