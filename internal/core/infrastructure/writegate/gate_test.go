package writegate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weisyn/contractcore/internal/core/infrastructure/clock"
	wgif "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/writegate"
)

func newGate() wgif.WriteGate {
	return New(clock.NewDeterministicClock(time.Unix(1_700_000_000, 0)))
}

// TestReadOnly_BlocksWrites 只读模式拒绝写操作，退出后恢复
func TestReadOnly_BlocksWrites(t *testing.T) {
	// Arrange
	gate := newGate()
	ctx := context.Background()
	require.NoError(t, gate.AssertWriteAllowed(ctx, "execute"))

	// Act
	gate.EnterReadOnly("disk full")
	gate.EnterReadOnly("second reason")

	// Assert
	assert.True(t, gate.IsReadOnly())
	assert.Equal(t, "disk full", gate.ReadOnlyReason())
	err := gate.AssertWriteAllowed(ctx, "execute")
	require.ErrorIs(t, err, wgif.ErrWriteBlocked)
	assert.Contains(t, err.Error(), "op=execute")

	gate.ExitReadOnly()
	assert.False(t, gate.IsReadOnly())
	assert.Empty(t, gate.ReadOnlyReason())
	assert.NoError(t, gate.AssertWriteAllowed(ctx, "execute"))
}

// TestRecoveryMode_BypassesReadOnly 恢复 token 可绕过只读模式
func TestRecoveryMode_BypassesReadOnly(t *testing.T) {
	// Arrange
	gate := newGate()
	gate.EnterReadOnly("corruption")
	token, err := gate.EnableRecoveryMode("restore")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Act & Assert
	assert.True(t, gate.IsRecoveryMode())
	assert.NoError(t, gate.AssertWriteAllowed(wgif.WithWriteToken(context.Background(), token), "restore"))
	assert.ErrorIs(t, gate.AssertWriteAllowed(context.Background(), "restore"), wgif.ErrWriteBlocked)
	assert.ErrorIs(t, gate.AssertWriteAllowed(wgif.WithWriteToken(context.Background(), "forged"), "restore"), wgif.ErrWriteBlocked)

	_, err = gate.EnableRecoveryMode("second")
	assert.Error(t, err)
	assert.Error(t, gate.DisableRecoveryMode("forged"))
	require.NoError(t, gate.DisableRecoveryMode(token))
	assert.False(t, gate.IsRecoveryMode())
	assert.NoError(t, gate.DisableRecoveryMode(token))
}

// TestTokenFromContext 未绑定 token 时为空
func TestTokenFromContext(t *testing.T) {
	assert.Empty(t, wgif.TokenFromContext(context.Background()))
	assert.Equal(t, "t", wgif.TokenFromContext(wgif.WithWriteToken(context.Background(), "t")))
}

// TestConcurrentAccess 并发切换与校验
func TestConcurrentAccess(t *testing.T) {
	gate := newGate()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			gate.EnterReadOnly("flap")
			gate.ExitReadOnly()
		}()
		go func() {
			defer wg.Done()
			_ = gate.AssertWriteAllowed(context.Background(), "execute")
			_ = gate.IsReadOnly()
		}()
	}
	wg.Wait()
	assert.False(t, gate.IsReadOnly())
}
