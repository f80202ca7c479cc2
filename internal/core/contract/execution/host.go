package execution

import (
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// hostEnv 单次执行的宿主环境
//
// 写入先暂存在本地（读可见本次调用的写入），执行成功后由引擎整体提交；
// 事件同样在成功后才返回给调用方。
type hostEnv struct {
	state   contractif.StateManager
	address types.Address

	budget uint64
	used   uint64

	maxKeySize   int
	maxValueSize int

	writes map[string][]byte
	order  []string
	events []types.ContractEvent
}

var _ contractif.HostEnv = (*hostEnv)(nil)

func newHostEnv(state contractif.StateManager, address types.Address, budget uint64, maxKey, maxValue int) *hostEnv {
	return &hostEnv{
		state:        state,
		address:      address,
		budget:       budget,
		maxKeySize:   maxKey,
		maxValueSize: maxValue,
		writes:       make(map[string][]byte),
	}
}

// ChargeGas 剩余预算不足时不扣减，返回 OutOfGas
func (h *hostEnv) ChargeGas(amount uint64) error {
	if amount > h.budget-h.used {
		return types.ErrOutOfGas.With("charge %d exceeds remaining %d of %d", amount, h.budget-h.used, h.budget)
	}
	h.used += amount
	return nil
}

func (h *hostEnv) StorageRead(key []byte) ([]byte, bool, error) {
	if v, ok := h.writes[string(key)]; ok {
		return v, true, nil
	}
	v, ok := h.state.Read(h.address, key)
	return v, ok, nil
}

func (h *hostEnv) StorageWrite(key, value []byte) error {
	if len(key) == 0 {
		return types.ErrInvalidInput.With("empty state key")
	}
	if h.maxKeySize > 0 && len(key) > h.maxKeySize {
		return types.ErrSizeLimitExceeded.With("key size %d exceeds %d", len(key), h.maxKeySize)
	}
	if h.maxValueSize > 0 && len(value) > h.maxValueSize {
		return types.ErrSizeLimitExceeded.With("value size %d exceeds %d", len(value), h.maxValueSize)
	}
	k := string(key)
	if _, seen := h.writes[k]; !seen {
		h.order = append(h.order, k)
	}
	h.writes[k] = append([]byte{}, value...)
	return nil
}

func (h *hostEnv) EmitEvent(name string, data []byte) error {
	h.events = append(h.events, types.ContractEvent{Name: name, Data: append([]byte{}, data...)})
	return nil
}

// changeset 按首次写入顺序返回暂存的写入
func (h *hostEnv) changeset() []types.Change {
	out := make([]types.Change, 0, len(h.order))
	for _, k := range h.order {
		out = append(out, types.Change{Key: []byte(k), Value: h.writes[k]})
	}
	return out
}
