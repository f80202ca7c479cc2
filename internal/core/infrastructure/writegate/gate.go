// Package writegate 写门闸实现：只读模式与恢复模式
package writegate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	wgif "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/writegate"
)

// gateImpl WriteGate 的默认实现
//
// 优先级：RecoveryToken > ReadOnly > Normal
type gateImpl struct {
	mu    sync.RWMutex
	clock clock.Clock

	readOnly   bool
	reason     string
	readOnlyAt time.Time

	recoveryEnabled bool
	recoveryToken   string
	recoveryPurpose string
	recoveryAt      time.Time
}

var _ wgif.WriteGate = (*gateImpl)(nil)

// New 创建写门闸；clk 为 nil 时不记录进入时间
func New(clk clock.Clock) wgif.WriteGate {
	return &gateImpl{clock: clk}
}

func (g *gateImpl) now() time.Time {
	if g.clock == nil {
		return time.Time{}
	}
	return g.clock.Now()
}

// EnterReadOnly 进入只读模式；已处于只读时保留最初的原因
func (g *gateImpl) EnterReadOnly(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.readOnly {
		return
	}
	g.readOnly = true
	g.reason = reason
	g.readOnlyAt = g.now()
}

// ExitReadOnly 退出只读模式
func (g *gateImpl) ExitReadOnly() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readOnly = false
	g.reason = ""
	g.readOnlyAt = time.Time{}
}

func (g *gateImpl) IsReadOnly() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.readOnly
}

func (g *gateImpl) ReadOnlyReason() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reason
}

// EnableRecoveryMode 开启恢复模式
func (g *gateImpl) EnableRecoveryMode(purpose string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recoveryEnabled {
		return "", fmt.Errorf("recovery mode already enabled: %s", g.recoveryPurpose)
	}
	g.recoveryEnabled = true
	g.recoveryToken = uuid.NewString()
	g.recoveryPurpose = purpose
	g.recoveryAt = g.now()
	return g.recoveryToken, nil
}

// DisableRecoveryMode 关闭恢复模式
func (g *gateImpl) DisableRecoveryMode(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.recoveryEnabled {
		return nil
	}
	if g.recoveryToken != token {
		return fmt.Errorf("recovery token mismatch")
	}
	g.recoveryEnabled = false
	g.recoveryToken = ""
	g.recoveryPurpose = ""
	g.recoveryAt = time.Time{}
	return nil
}

func (g *gateImpl) IsRecoveryMode() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.recoveryEnabled
}

// AssertWriteAllowed 校验写操作是否允许
func (g *gateImpl) AssertWriteAllowed(ctx context.Context, op string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.recoveryEnabled {
		if token := wgif.TokenFromContext(ctx); token != "" && token == g.recoveryToken {
			return nil
		}
	}
	if g.readOnly {
		return fmt.Errorf("%w (read-only since %s): op=%s reason=%s",
			wgif.ErrWriteBlocked, g.readOnlyAt.Format(time.RFC3339), op, g.reason)
	}
	return nil
}
