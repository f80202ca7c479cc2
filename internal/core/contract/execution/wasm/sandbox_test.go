package wasm

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	"github.com/weisyn/contractcore/internal/core/contract/testutil"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// fakeHost 内存中的宿主环境
type fakeHost struct {
	budget uint64
	used   uint64
	store  map[string][]byte
	events []types.ContractEvent
}

func newFakeHost(budget uint64) *fakeHost {
	return &fakeHost{budget: budget, store: make(map[string][]byte)}
}

func (h *fakeHost) ChargeGas(amount uint64) error {
	if h.used+amount > h.budget {
		return types.ErrOutOfGas.With("need %d, have %d", amount, h.budget-h.used)
	}
	h.used += amount
	return nil
}

func (h *fakeHost) StorageRead(key []byte) ([]byte, bool, error) {
	v, ok := h.store[string(key)]
	return v, ok, nil
}

func (h *fakeHost) StorageWrite(key, value []byte) error {
	h.store[string(key)] = value
	return nil
}

func (h *fakeHost) EmitEvent(name string, data []byte) error {
	h.events = append(h.events, types.ContractEvent{Name: name, Data: data})
	return nil
}

func newTestSandbox(t *testing.T) *WazeroSandbox {
	t.Helper()
	s, err := New(nil, testutil.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func counterInvocation(method string, args []byte) contractif.Invocation {
	code, _ := testutil.CounterContract(42)
	return contractif.Invocation{
		CodeHash: [32]byte{0x01},
		Bytecode: code,
		Method:   method,
		Args:     args,
		Limits:   testutil.DefaultLimits(),
	}
}

func methodNamesOf(abi types.ABI) []string {
	names := make([]string, len(abi.Methods))
	for i, m := range abi.Methods {
		names[i] = m.Name
	}
	return names
}

// TestValidate_CounterContract 满足调用约定的模块通过校验
func TestValidate_CounterContract(t *testing.T) {
	s := newTestSandbox(t)
	code, abi := testutil.CounterContract(1)

	err := s.Validate(context.Background(), code, methodNamesOf(abi), testutil.DefaultLimits())

	assert.NoError(t, err)
}

// TestValidate_Rejections 各类不满足调用约定的模块
func TestValidate_Rejections(t *testing.T) {
	counter, abi := testutil.CounterContract(1)
	noMemory, noMemoryABI := testutil.NoMemoryContract()
	wasi, wasiABI := testutil.WASIContract()
	tinyLimits := testutil.DefaultLimits()
	tinyLimits.MaxMemory = 1024

	cases := []struct {
		name     string
		bytecode []byte
		methods  []string
		limits   types.ResourceLimits
		want     *types.Error
	}{
		{"非WASM字节", []byte{0x00, 0x01, 0x02, 0x03}, nil, testutil.DefaultLimits(), types.ErrInvalidBytecode},
		{"未导出内存", noMemory, methodNamesOf(noMemoryABI), testutil.DefaultLimits(), types.ErrInvalidBytecode},
		{"导入WASI", wasi, methodNamesOf(wasiABI), testutil.DefaultLimits(), types.ErrInvalidBytecode},
		{"ABI方法未导出", counter, append(methodNamesOf(abi), "missing"), testutil.DefaultLimits(), types.ErrInvalidBytecode},
		{"初始内存超过限制", counter, methodNamesOf(abi), tinyLimits, types.ErrResourceLimitExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSandbox(t)
			err := s.Validate(context.Background(), tc.bytecode, tc.methods, tc.limits)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

// TestCall_HostFunctions 宿主函数读写、计费与事件
func TestCall_HostFunctions(t *testing.T) {
	ctx := context.Background()
	s := newTestSandbox(t)

	t.Run("set计费并写入", func(t *testing.T) {
		host := newFakeHost(1000)
		out, err := s.Call(ctx, counterInvocation("set", nil), host)
		require.NoError(t, err)
		assert.Nil(t, out)
		assert.Equal(t, uint64(100), host.used)
		assert.Equal(t, testutil.CounterValue, host.store["k"])
	})

	t.Run("get返回打包缓冲区", func(t *testing.T) {
		host := newFakeHost(1000)
		host.store["k"] = []byte("hello")
		out, err := s.Call(ctx, counterInvocation("get", nil), host)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), out)
	})

	t.Run("answer返回小端i32", func(t *testing.T) {
		out, err := s.Call(ctx, counterInvocation("answer", nil), newFakeHost(0))
		require.NoError(t, err)
		assert.Equal(t, testutil.U32LE(42), out)
	})

	t.Run("burn按参数计费", func(t *testing.T) {
		host := newFakeHost(1000)
		_, err := s.Call(ctx, counterInvocation("burn", testutil.U32LE(250)), host)
		require.NoError(t, err)
		assert.Equal(t, uint64(250), host.used)
	})

	t.Run("put写入参数", func(t *testing.T) {
		host := newFakeHost(1000)
		_, err := s.Call(ctx, counterInvocation("put", []byte("payload")), host)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), host.store["k"])
	})

	t.Run("emit发出事件", func(t *testing.T) {
		host := newFakeHost(1000)
		_, err := s.Call(ctx, counterInvocation("emit", nil), host)
		require.NoError(t, err)
		assert.Equal(t, []types.ContractEvent{{Name: testutil.EventName, Data: testutil.CounterValue}}, host.events)
	})
}

// TestCall_Faults 故障映射为对应的错误码
func TestCall_Faults(t *testing.T) {
	ctx := context.Background()
	s := newTestSandbox(t)

	t.Run("trap", func(t *testing.T) {
		_, err := s.Call(ctx, counterInvocation("fail", nil), newFakeHost(1000))
		assert.ErrorIs(t, err, types.ErrTrap)
	})

	t.Run("调用深度", func(t *testing.T) {
		inv := counterInvocation("recurse", nil)
		inv.Limits.MaxCallDepth = 16
		_, err := s.Call(ctx, inv, newFakeHost(1000))
		assert.ErrorIs(t, err, types.ErrCallDepthExceeded)
	})

	t.Run("gas耗尽", func(t *testing.T) {
		host := newFakeHost(500)
		_, err := s.Call(ctx, counterInvocation("spin", nil), host)
		assert.ErrorIs(t, err, types.ErrOutOfGas)
		assert.Equal(t, uint64(500), host.used)
	})

	t.Run("内存超限", func(t *testing.T) {
		_, err := s.Call(ctx, counterInvocation("grow", nil), newFakeHost(1000))
		assert.ErrorIs(t, err, types.ErrTrap)
	})

	t.Run("方法不存在", func(t *testing.T) {
		_, err := s.Call(ctx, counterInvocation("nope", nil), newFakeHost(1000))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("参数超过缓冲区", func(t *testing.T) {
		args := bytes.Repeat([]byte{0x01}, testutil.BufferSize+1)
		_, err := s.Call(ctx, counterInvocation("put", args), newFakeHost(1000))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("读取值超过缓冲区", func(t *testing.T) {
		host := newFakeHost(1000)
		host.store["k"] = bytes.Repeat([]byte{0x02}, testutil.BufferSize+1)
		_, err := s.Call(ctx, counterInvocation("get", nil), host)
		assert.ErrorIs(t, err, types.ErrStateAccess)
	})
}

// TestCall_ConcurrentInstances 同一沙箱上的并发调用互不影响
func TestCall_ConcurrentInstances(t *testing.T) {
	ctx := context.Background()
	s := newTestSandbox(t)
	inv := counterInvocation("burn", testutil.U32LE(7))
	require.NoError(t, s.Load(ctx, inv.CodeHash, inv.Bytecode))

	var wg sync.WaitGroup
	hosts := make([]*fakeHost, 8)
	errs := make([]error, len(hosts))
	for i := range hosts {
		hosts[i] = newFakeHost(100)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Call(ctx, inv, hosts[i])
		}(i)
	}
	wg.Wait()

	for i, h := range hosts {
		require.NoError(t, errs[i])
		assert.Equal(t, uint64(7), h.used)
	}
}

// TestLoad_CachesByCodeHash 已缓存的模块无需再次提供字节码
func TestLoad_CachesByCodeHash(t *testing.T) {
	ctx := context.Background()
	s := newTestSandbox(t)
	inv := counterInvocation("answer", nil)
	require.NoError(t, s.Load(ctx, inv.CodeHash, inv.Bytecode))

	inv.Bytecode = nil
	out, err := s.Call(ctx, inv, newFakeHost(0))

	require.NoError(t, err)
	assert.Equal(t, testutil.U32LE(42), out)
	assert.ErrorIs(t, s.Load(ctx, [32]byte{0x02}, []byte{0x00}), types.ErrInvalidBytecode)
}

// TestCall_ExecutionTimeout 不调用 gas 的死循环在墙钟上限处被中断
func TestCall_ExecutionTimeout(t *testing.T) {
	// Arrange
	ctx := context.Background()
	options := contractconfig.Default()
	options.ExecutionTimeout = 50 * time.Millisecond
	s, err := New(options, testutil.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	code, _ := testutil.BusyLoopContract()
	host := newFakeHost(1000)

	// Act
	start := time.Now()
	_, err = s.Call(ctx, contractif.Invocation{
		CodeHash: [32]byte{0x0c},
		Bytecode: code,
		Method:   "loop",
		Limits:   testutil.DefaultLimits(),
	}, host)

	// Assert
	assert.ErrorIs(t, err, types.ErrTrap)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, host.used)

	out, err := s.Call(ctx, counterInvocation("answer", nil), newFakeHost(0))
	require.NoError(t, err, "超时后沙箱仍可继续使用")
	assert.Equal(t, testutil.U32LE(42), out)
}

// TestLoad_EvictsLeastRecentlyUsed 编译缓存超过上限时淘汰最久未使用的模块
func TestLoad_EvictsLeastRecentlyUsed(t *testing.T) {
	// Arrange
	ctx := context.Background()
	options := contractconfig.Default()
	options.MaxCompiledModules = 2
	s, err := New(options, testutil.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	code, _ := testutil.CounterContract(42)
	h1, h2, h3 := [32]byte{0x01}, [32]byte{0x02}, [32]byte{0x03}

	// Act
	require.NoError(t, s.Load(ctx, h1, code))
	require.NoError(t, s.Load(ctx, h2, code))
	require.NoError(t, s.Load(ctx, h1, nil))
	require.NoError(t, s.Load(ctx, h3, code))

	// Assert
	assert.Equal(t, 2, s.compiled.size())
	call := func(hash [32]byte) error {
		_, err := s.Call(ctx, contractif.Invocation{
			CodeHash: hash, Method: "answer", Limits: testutil.DefaultLimits(),
		}, newFakeHost(0))
		return err
	}
	assert.NoError(t, call(h1))
	assert.NoError(t, call(h3))
	assert.ErrorIs(t, call(h2), types.ErrInvalidBytecode, "被淘汰的模块需要重新提供字节码")
}
