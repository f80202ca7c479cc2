package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	types "github.com/weisyn/contractcore/pkg/types"
)

// TestNew_NilUserConfig_UsesDefaults 无用户配置时使用默认值
func TestNew_NilUserConfig_UsesDefaults(t *testing.T) {
	cfg := New(nil)
	opts := cfg.GetOptions()

	assert.Equal(t, uint64(defaultMaxBytecodeSize), opts.MaxBytecodeSize)
	assert.Equal(t, 1, opts.RollbackDepth)
	assert.False(t, cfg.IsRollbackUnbounded())
	assert.False(t, cfg.IsUpgradeRateLimited())
	assert.Equal(t, uint32(defaultMaxCallDepth), opts.DefaultLimits.MaxCallDepth)
}

// TestNew_UserConfig_OverridesOnlyPresentFields 只覆盖出现的字段
func TestNew_UserConfig_OverridesOnlyPresentFields(t *testing.T) {
	// Arrange
	depth := 0
	interval := "1h"
	badTimeout := "soon"
	gas := uint64(5000)
	execTimeout := "250ms"
	cached := 8
	user := &types.UserContractConfig{
		RollbackDepth:      &depth,
		MinUpgradeInterval: &interval,
		OperationTimeout:   &badTimeout,
		DefaultMaxGas:      &gas,
		ExecutionTimeout:   &execTimeout,
		MaxCompiledModules: &cached,
	}

	// Act
	cfg := New(user)
	opts := cfg.GetOptions()

	// Assert
	assert.True(t, cfg.IsRollbackUnbounded())
	assert.Equal(t, time.Hour, opts.MinUpgradeInterval)
	assert.True(t, cfg.IsUpgradeRateLimited())
	assert.Equal(t, time.Duration(defaultOperationTimeout), opts.OperationTimeout)
	assert.Equal(t, uint64(5000), opts.DefaultLimits.MaxGas)
	assert.Equal(t, defaultMaxKeySize, opts.MaxKeySize)
	assert.Equal(t, 250*time.Millisecond, opts.ExecutionTimeout)
	assert.Equal(t, 8, opts.MaxCompiledModules)
}
