package testutil

import (
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// BufferSize 与默认配置一致的参数/返回缓冲区大小
const BufferSize = 4096

// DataOffset 测试合约常量数据的起始偏移，位于两个缓冲区之后
const DataOffset = 4 * BufferSize

// 测试合约使用的常量
var (
	CounterKey   = []byte("k")
	CounterValue = []byte("v")
	FailValue    = []byte("x")
	EventName    = "Transfer"
)

// CounterContract 带全部宿主调用的测试合约
//
// 方法：
//   - set()            gas(100)，写入 k=v
//   - get() i64        读取 k，返回打包的 (ptr<<32 | len)
//   - burn(i32)        gas(参数中的小端 u32)
//   - put(i32)         gas(10)，写入 k=参数
//   - fail()           写入 k=x 后 trap
//   - recurse()        无限自递归
//   - emit()           gas(1)，发出 Transfer 事件，数据为 v
//   - answer() i32     返回 answer
//   - admin()          特权方法，gas(1)，写入 k=x
//   - spin()           每轮 gas(1) 的死循环
//   - grow()           内存增长 512 页
func CounterContract(answer int32) ([]byte, types.ABI) {
	b := NewModuleBuilder()
	gas := b.Import("env", "gas", []byte{I32}, nil)
	read := b.Import("env", "storage_read", []byte{I32, I32}, []byte{I32})
	write := b.Import("env", "storage_write", []byte{I32, I32, I32, I32}, nil)
	emit := b.Import("env", "emit_event", []byte{I32, I32, I32, I32}, nil)

	keyPtr := int32(DataOffset)
	valPtr := keyPtr + 1
	failPtr := keyPtr + 2
	namePtr := keyPtr + 3

	set := b.Func(nil, nil, nil,
		I32Const(100), Call(gas),
		I32Const(keyPtr), I32Const(1), I32Const(valPtr), I32Const(1), Call(write),
	)
	get := b.Func(nil, []byte{I64}, nil,
		I64Const(int64(BufferSize)<<32),
		I32Const(keyPtr), I32Const(1), Call(read),
		Op(OpI64ExtendI32U, OpI64Or),
	)
	burn := b.Func([]byte{I32}, nil, nil,
		I32Const(0), I32Load(), Call(gas),
	)
	put := b.Func([]byte{I32}, nil, nil,
		I32Const(10), Call(gas),
		I32Const(keyPtr), I32Const(1), I32Const(0), LocalGet(0), Call(write),
	)
	fail := b.Func(nil, nil, nil,
		I32Const(keyPtr), I32Const(1), I32Const(failPtr), I32Const(1), Call(write),
		Op(OpUnreachable),
	)
	recurseIdx := b.NextFuncIndex()
	recurse := b.Func(nil, nil, nil, Call(recurseIdx))
	emitFn := b.Func(nil, nil, nil,
		I32Const(1), Call(gas),
		I32Const(namePtr), I32Const(int32(len(EventName))), I32Const(valPtr), I32Const(1), Call(emit),
	)
	ans := b.Func(nil, []byte{I32}, nil, I32Const(answer))
	admin := b.Func(nil, nil, nil,
		I32Const(1), Call(gas),
		I32Const(keyPtr), I32Const(1), I32Const(failPtr), I32Const(1), Call(write),
	)
	spin := b.Func(nil, nil, nil,
		Op(OpLoop, 0x40),
		I32Const(1), Call(gas),
		Op(OpBr, 0x00),
		Op(OpEnd),
	)
	grow := b.Func(nil, nil, nil,
		I32Const(512), Op(OpMemoryGrow, 0x00), Op(OpDrop),
	)

	b.Export("set", set).Export("get", get).Export("burn", burn).Export("put", put).
		Export("fail", fail).Export("recurse", recurse).Export("emit", emitFn).
		Export("answer", ans).Export("admin", admin).Export("spin", spin).Export("grow", grow)
	b.Memory(1, nil)
	data := append(append(append(append([]byte{}, CounterKey...), CounterValue...), FailValue...), EventName...)
	b.Data(uint32(DataOffset), data)

	return b.Bytes(), CounterABI()
}

// CounterABI CounterContract 的接口描述
func CounterABI() types.ABI {
	names := []string{"set", "get", "burn", "put", "fail", "recurse", "emit", "answer", "spin", "grow"}
	abi := types.ABI{Events: []types.EventDef{{Name: EventName}}}
	for _, n := range names {
		abi.Methods = append(abi.Methods, types.Method{Name: n})
	}
	abi.Methods = append(abi.Methods, types.Method{Name: "admin", Privileged: true})
	return abi
}

// NoMemoryContract 未导出内存的模块
func NoMemoryContract() ([]byte, types.ABI) {
	b := NewModuleBuilder()
	f := b.Func(nil, nil, nil)
	b.Export("noop", f)
	return b.Bytes(), types.ABI{Methods: []types.Method{{Name: "noop"}}}
}

// BusyLoopContract loop() 是从不调用 gas 的死循环
func BusyLoopContract() ([]byte, types.ABI) {
	b := NewModuleBuilder()
	f := b.Func(nil, nil, nil,
		Op(OpLoop, 0x40),
		Op(OpBr, 0x00),
		Op(OpEnd),
	)
	b.Export("loop", f)
	b.Memory(1, nil)
	return b.Bytes(), types.ABI{Methods: []types.Method{{Name: "loop"}}}
}

// WASIContract 导入 WASI 函数的模块（不允许）
func WASIContract() ([]byte, types.ABI) {
	b := NewModuleBuilder()
	b.Import("wasi_snapshot_preview1", "random_get", []byte{I32, I32}, []byte{I32})
	f := b.Func(nil, nil, nil)
	b.Export("noop", f)
	b.Memory(1, nil)
	return b.Bytes(), types.ABI{Methods: []types.Method{{Name: "noop"}}}
}

// U32LE 小端编码，用作 burn 的参数
func U32LE(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// Metadata 测试用元数据
func Metadata(version string, upgradeable bool) types.Metadata {
	return types.Metadata{
		Version:       version,
		Author:        []byte{0x02, 0xaa},
		Description:   "counter contract " + version,
		IsUpgradeable: upgradeable,
	}
}
