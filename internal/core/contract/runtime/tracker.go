package runtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/metrics"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// operation 一个进行中的操作
type operation struct {
	id      string
	op      types.OperationType
	address types.Address
	started time.Time
}

// Tracker 操作跟踪器：并发上限、单合约上限与每秒操作数限制
//
// 超过 OperationTimeout 的跟踪记录视为遗留并被清理，不会中断正在执行的操作。
type Tracker struct {
	mu      sync.Mutex
	clock   clock.Clock
	options *contractconfig.ContractOptions
	metrics metrics.Recorder
	logger  log.Logger

	active      map[string]*operation
	perContract map[types.Address]int
	// starts 历史窗口内的操作开始时间，按时间顺序
	starts []time.Time
}

// NewTracker 创建操作跟踪器
func NewTracker(clk clock.Clock, options *contractconfig.ContractOptions, recorder metrics.Recorder, logger log.Logger) *Tracker {
	return &Tracker{
		clock:       clk,
		options:     options,
		metrics:     recorder,
		logger:      logger,
		active:      make(map[string]*operation),
		perContract: make(map[types.Address]int),
	}
}

// Begin 登记操作；超出任一限制时返回 ConcurrencyLimitExceeded
//
// 返回的 done 在操作结束时调用一次，多次调用无副作用。
func (t *Tracker) Begin(op types.OperationType, address types.Address) (done func(err error), err error) {
	now := t.clock.Now()

	t.mu.Lock()
	t.expireLocked(now)
	t.pruneLocked(now)
	if err := t.admitLocked(address, now); err != nil {
		t.mu.Unlock()
		t.metrics.ObserveOperation(string(op), metrics.ResultRejected, 0)
		return nil, err
	}
	o := &operation{id: uuid.NewString(), op: op, address: address, started: now}
	t.active[o.id] = o
	t.perContract[address]++
	t.starts = append(t.starts, now)
	active := len(t.active)
	t.mu.Unlock()
	t.metrics.SetActiveOperations(active)

	var once sync.Once
	return func(err error) {
		once.Do(func() { t.finish(o, err) })
	}, nil
}

func (t *Tracker) admitLocked(address types.Address, now time.Time) error {
	if max := t.options.MaxConcurrentOperations; max > 0 && len(t.active) >= max {
		return types.ErrConcurrencyLimitExceeded.With("%d operations in flight", len(t.active))
	}
	if max := t.options.MaxOperationsPerContract; max > 0 && t.perContract[address] >= max {
		return types.ErrConcurrencyLimitExceeded.With("%d operations in flight for %s", t.perContract[address], address)
	}
	if max := t.options.MaxOperationsPerSecond; max > 0 && t.countSinceLocked(now.Add(-time.Second)) >= max {
		return types.ErrConcurrencyLimitExceeded.With("more than %d operations per second", max)
	}
	return nil
}

func (t *Tracker) finish(o *operation, err error) {
	t.mu.Lock()
	if _, ok := t.active[o.id]; ok {
		t.removeLocked(o)
	}
	active := len(t.active)
	t.mu.Unlock()

	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	t.metrics.ObserveOperation(string(o.op), result, t.clock.Since(o.started))
	t.metrics.SetActiveOperations(active)
}

func (t *Tracker) removeLocked(o *operation) {
	delete(t.active, o.id)
	if t.perContract[o.address] <= 1 {
		delete(t.perContract, o.address)
	} else {
		t.perContract[o.address]--
	}
}

// expireLocked 清理超时的跟踪记录
func (t *Tracker) expireLocked(now time.Time) {
	timeout := t.options.OperationTimeout
	if timeout <= 0 {
		return
	}
	for _, o := range t.active {
		if now.Sub(o.started) > timeout {
			t.logger.Warnf("操作跟踪超时，已清理: id=%s op=%s address=%s", o.id, o.op, o.address)
			t.removeLocked(o)
		}
	}
}

// pruneLocked 丢弃历史窗口之外的开始时间
func (t *Tracker) pruneLocked(now time.Time) {
	window := t.window()
	cutoff := now.Add(-window)
	i := 0
	for i < len(t.starts) && !t.starts[i].After(cutoff) {
		i++
	}
	t.starts = t.starts[i:]
}

func (t *Tracker) window() time.Duration {
	if w := t.options.HistoryWindow; w >= time.Second {
		return w
	}
	return time.Second
}

func (t *Tracker) countSinceLocked(cutoff time.Time) int {
	n := 0
	for i := len(t.starts) - 1; i >= 0 && t.starts[i].After(cutoff); i-- {
		n++
	}
	return n
}

// Active 进行中的操作数
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked(t.clock.Now())
	return len(t.active)
}

// OperationsPerSecond 历史窗口内的平均每秒操作数
func (t *Tracker) OperationsPerSecond() float64 {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)
	return float64(len(t.starts)) / t.window().Seconds()
}
