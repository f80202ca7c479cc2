package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/contractcore/configs"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	"github.com/weisyn/contractcore/pkg/types"
)

// TestGetStorageBackend 测试存储后端选择
func TestGetStorageBackend(t *testing.T) {
	t.Run("未配置时默认为 badger", func(t *testing.T) {
		assert.Equal(t, config.StorageBackendBadger, NewProvider(nil).GetStorageBackend())
	})

	t.Run("大小写不敏感", func(t *testing.T) {
		cfg := &types.AppConfig{Storage: &types.UserStorageConfig{Backend: types.StringPtr("Memory")}}
		assert.Equal(t, config.StorageBackendMemory, NewProvider(cfg).GetStorageBackend())
	})

	t.Run("未知值回退为 badger", func(t *testing.T) {
		cfg := &types.AppConfig{Storage: &types.UserStorageConfig{Backend: types.StringPtr("leveldb")}}
		assert.Equal(t, config.StorageBackendBadger, NewProvider(cfg).GetStorageBackend())
	})
}

// TestGetBadger_PathFollowsDataDir 未配置 data_root 时使用 data_dir
func TestGetBadger_PathFollowsDataDir(t *testing.T) {
	cfg := &types.AppConfig{
		DataDir: types.StringPtr("/var/lib/cc"),
		Storage: &types.UserStorageConfig{SyncWrites: types.BoolPtr(true)},
	}

	opts := NewProvider(cfg).GetBadger()

	assert.Equal(t, filepath.Join("/var/lib/cc", "badger"), opts.Path)
	assert.True(t, opts.SyncWrites)
	// 原配置不应被修改
	assert.Nil(t, cfg.Storage.DataRoot)
}

// TestLoadAppConfig 测试从JSON文件加载
func TestLoadAppConfig(t *testing.T) {
	t.Run("空路径返回空配置", func(t *testing.T) {
		cfg, err := LoadAppConfig("")
		require.NoError(t, err)
		assert.NotNil(t, cfg)
	})

	t.Run("解析合约配置", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cc.json")
		body := `{"data_dir":"/tmp/cc","contract":{"rollback_depth":3,"min_upgrade_interval":"2h"}}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		cfg, err := LoadAppConfig(path)
		require.NoError(t, err)

		provider := NewProvider(cfg)
		assert.Equal(t, "/tmp/cc", provider.GetDataDir())
		assert.Equal(t, 3, provider.GetContract().RollbackDepth)
		assert.Equal(t, 2*time.Hour, provider.GetContract().MinUpgradeInterval)
	})

	t.Run("非法JSON返回错误", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

		_, err := LoadAppConfig(path)
		assert.Error(t, err)
	})
}

// TestEmbeddedTemplate_Parses 内置配置模板可被解析
func TestEmbeddedTemplate_Parses(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "contractcore.json")
	require.NoError(t, os.WriteFile(path, configs.Default, 0o600))

	// Act
	appConfig, err := LoadAppConfig(path)
	require.NoError(t, err)
	provider := NewProvider(appConfig)

	// Assert
	assert.Equal(t, "contractcore", provider.GetAppName())
	assert.Equal(t, config.StorageBackendBadger, provider.GetStorageBackend())
	contract := provider.GetContract()
	assert.Equal(t, 1, contract.RollbackDepth)
	assert.Equal(t, uint64(1_000_000), contract.DefaultLimits.MaxGas)
	assert.Equal(t, 30*time.Second, contract.OperationTimeout)
	assert.Equal(t, 5*time.Second, contract.ExecutionTimeout)
	assert.Equal(t, 256, contract.MaxCompiledModules)
}
