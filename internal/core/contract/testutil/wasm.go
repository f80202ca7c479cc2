package testutil

import (
	"bytes"
)

// WebAssembly 值类型
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

// 测试用到的操作码
const (
	OpUnreachable   byte = 0x00
	OpLoop          byte = 0x03
	OpEnd           byte = 0x0b
	OpBr            byte = 0x0c
	OpCall          byte = 0x10
	OpDrop          byte = 0x1a
	OpLocalGet      byte = 0x20
	OpI32Load       byte = 0x28
	OpMemoryGrow    byte = 0x40
	OpI32Const      byte = 0x41
	OpI64Const      byte = 0x42
	OpI64Or         byte = 0x84
	OpI64ExtendI32U byte = 0xad
)

type funcType struct {
	params, results []byte
}

type wasmImport struct {
	module, name string
	typeIdx      uint32
}

type wasmFunc struct {
	typeIdx uint32
	locals  []byte
	code    []byte
}

type wasmExport struct {
	name string
	kind byte
	idx  uint32
}

type dataSegment struct {
	offset uint32
	data   []byte
}

// ModuleBuilder 手工组装 WebAssembly 二进制模块
//
// 导入必须先于函数添加，函数索引按导入在前、本地函数在后的顺序分配。
type ModuleBuilder struct {
	types   []funcType
	imports []wasmImport
	funcs   []wasmFunc
	exports []wasmExport
	memMin  uint32
	memMax  *uint32
	hasMem  bool
	data    []dataSegment
}

// NewModuleBuilder 创建空模块
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{}
}

func (b *ModuleBuilder) typeIndex(params, results []byte) uint32 {
	for i, t := range b.types {
		if bytes.Equal(t.params, params) && bytes.Equal(t.results, results) {
			return uint32(i)
		}
	}
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// Import 添加导入函数，返回函数索引
func (b *ModuleBuilder) Import(module, name string, params, results []byte) uint32 {
	if len(b.funcs) > 0 {
		panic("testutil: imports must be added before functions")
	}
	b.imports = append(b.imports, wasmImport{module: module, name: name, typeIdx: b.typeIndex(params, results)})
	return uint32(len(b.imports) - 1)
}

// NextFuncIndex 下一个本地函数将获得的索引（用于递归调用）
func (b *ModuleBuilder) NextFuncIndex() uint32 {
	return uint32(len(b.imports) + len(b.funcs))
}

// Func 添加函数；code 不含结尾的 end 操作码
func (b *ModuleBuilder) Func(params, results []byte, locals []byte, code ...[]byte) uint32 {
	b.funcs = append(b.funcs, wasmFunc{
		typeIdx: b.typeIndex(params, results),
		locals:  locals,
		code:    bytes.Join(code, nil),
	})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Export 导出函数
func (b *ModuleBuilder) Export(name string, funcIdx uint32) *ModuleBuilder {
	b.exports = append(b.exports, wasmExport{name: name, kind: 0x00, idx: funcIdx})
	return b
}

// Memory 声明并导出名为 memory 的线性内存（单位：页）
func (b *ModuleBuilder) Memory(minPages uint32, maxPages *uint32) *ModuleBuilder {
	b.hasMem = true
	b.memMin = minPages
	b.memMax = maxPages
	b.exports = append(b.exports, wasmExport{name: "memory", kind: 0x02, idx: 0})
	return b
}

// Data 添加主动数据段
func (b *ModuleBuilder) Data(offset uint32, data []byte) *ModuleBuilder {
	b.data = append(b.data, dataSegment{offset: offset, data: data})
	return b
}

// Bytes 输出模块二进制
func (b *ModuleBuilder) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(b.types) > 0 {
		var sec bytes.Buffer
		sec.Write(U32(uint32(len(b.types))))
		for _, t := range b.types {
			sec.WriteByte(0x60)
			sec.Write(U32(uint32(len(t.params))))
			sec.Write(t.params)
			sec.Write(U32(uint32(len(t.results))))
			sec.Write(t.results)
		}
		writeSection(&out, 1, sec.Bytes())
	}

	if len(b.imports) > 0 {
		var sec bytes.Buffer
		sec.Write(U32(uint32(len(b.imports))))
		for _, im := range b.imports {
			sec.Write(name(im.module))
			sec.Write(name(im.name))
			sec.WriteByte(0x00)
			sec.Write(U32(im.typeIdx))
		}
		writeSection(&out, 2, sec.Bytes())
	}

	if len(b.funcs) > 0 {
		var sec bytes.Buffer
		sec.Write(U32(uint32(len(b.funcs))))
		for _, f := range b.funcs {
			sec.Write(U32(f.typeIdx))
		}
		writeSection(&out, 3, sec.Bytes())
	}

	if b.hasMem {
		var sec bytes.Buffer
		sec.Write(U32(1))
		if b.memMax != nil {
			sec.WriteByte(0x01)
			sec.Write(U32(b.memMin))
			sec.Write(U32(*b.memMax))
		} else {
			sec.WriteByte(0x00)
			sec.Write(U32(b.memMin))
		}
		writeSection(&out, 5, sec.Bytes())
	}

	if len(b.exports) > 0 {
		var sec bytes.Buffer
		sec.Write(U32(uint32(len(b.exports))))
		for _, e := range b.exports {
			sec.Write(name(e.name))
			sec.WriteByte(e.kind)
			sec.Write(U32(e.idx))
		}
		writeSection(&out, 7, sec.Bytes())
	}

	if len(b.funcs) > 0 {
		var sec bytes.Buffer
		sec.Write(U32(uint32(len(b.funcs))))
		for _, f := range b.funcs {
			var body bytes.Buffer
			body.Write(U32(uint32(len(f.locals))))
			for _, l := range f.locals {
				body.Write(U32(1))
				body.WriteByte(l)
			}
			body.Write(f.code)
			body.WriteByte(OpEnd)
			sec.Write(U32(uint32(body.Len())))
			sec.Write(body.Bytes())
		}
		writeSection(&out, 10, sec.Bytes())
	}

	if len(b.data) > 0 {
		var sec bytes.Buffer
		sec.Write(U32(uint32(len(b.data))))
		for _, d := range b.data {
			sec.WriteByte(0x00)
			sec.Write(I32Const(int32(d.offset)))
			sec.WriteByte(OpEnd)
			sec.Write(U32(uint32(len(d.data))))
			sec.Write(d.data)
		}
		writeSection(&out, 11, sec.Bytes())
	}

	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, payload []byte) {
	out.WriteByte(id)
	out.Write(U32(uint32(len(payload))))
	out.Write(payload)
}

func name(s string) []byte {
	return append(U32(uint32(len(s))), s...)
}

// U32 无符号 LEB128
func U32(v uint32) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		out = append(out, c)
		if done {
			return out
		}
	}
}

// I32Const i32.const 指令
func I32Const(v int32) []byte { return append([]byte{OpI32Const}, sleb(int64(v))...) }

// I64Const i64.const 指令
func I64Const(v int64) []byte { return append([]byte{OpI64Const}, sleb(v)...) }

// Call call 指令
func Call(idx uint32) []byte { return append([]byte{OpCall}, U32(idx)...) }

// LocalGet local.get 指令
func LocalGet(idx uint32) []byte { return append([]byte{OpLocalGet}, U32(idx)...) }

// I32Load 对齐为4、偏移为0的 i32.load
func I32Load() []byte { return []byte{OpI32Load, 0x02, 0x00} }

// Op 单字节指令
func Op(op ...byte) []byte { return op }
