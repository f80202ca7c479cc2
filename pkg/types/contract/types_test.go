package contract

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseAddress_HexLeftPadded 短十六进制左侧补零
func TestParseAddress_HexLeftPadded(t *testing.T) {
	addr, err := ParseAddress("0xA1")
	require.NoError(t, err)
	var want Address
	want[31] = 0xa1
	assert.Equal(t, want, addr)
}

// TestParseAddress_Base58RoundTrip base58 编码可解析回原地址
func TestParseAddress_Base58RoundTrip(t *testing.T) {
	var a Address
	for i := range a {
		a[i] = byte(i + 1)
	}
	got, err := ParseAddress(a.Base58())
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, s := range []string{"", "0xzz", "0x" + fmt.Sprintf("%066x", 1), "3mJr7AoUXx2Wqd"} {
		_, err := ParseAddress(s)
		assert.Error(t, err, s)
	}
}

func TestParseRole_WellKnownNames(t *testing.T) {
	for name, want := range map[string]Role{
		"DEFAULT_ADMIN": DefaultAdminRole,
		"deployer":      DeployerRole,
		"Executor":      ExecutorRole,
		"UPGRADER":      UpgraderRole,
	} {
		got, err := ParseRole(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

// TestAddress_JSONText 地址以十六进制文本出现在JSON中
func TestAddress_JSONText(t *testing.T) {
	in := struct {
		Address Address `json:"address"`
		Role    Role    `json:"role"`
	}{Address: Address{31: 0xa1}, Role: UpgraderRole}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"0x00000000000000000000000000000000000000000000000000000000000000a1"`)

	var out struct {
		Address Address `json:"address"`
		Role    Role    `json:"role"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.Address, out.Address)
	assert.Equal(t, in.Role, out.Role)
}

// TestError_IsMatchesCode 同一错误码跨组件匹配
func TestError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("execute: %w", ErrPermissionDenied.With("caller lacks EXECUTOR"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.NotErrorIs(t, err, ErrUnknownRole)
	assert.Equal(t, CodePermissionDenied, CodeOf(err))
	assert.Equal(t, "auth: PermissionDenied: caller lacks EXECUTOR", ErrPermissionDenied.With("caller lacks EXECUTOR").Error())
}

// TestError_WrapKeepsCause 包装后仍可匹配原因
func TestError_WrapKeepsCause(t *testing.T) {
	err := ErrMigrationFailed.Wrap(ErrNotFound.With("field missing"), "step 2")
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsVersionError(ErrVersionConflict.With("x")))
	assert.False(t, IsVersionError(ErrOutOfGas))
	assert.True(t, IsStateError(ErrMigrationFailed))
	assert.True(t, IsStateError(ErrCorruptedState))
	assert.False(t, IsRecoverable(ErrCorruptedState))
	assert.True(t, IsRecoverable(ErrOutOfGas))
	assert.False(t, IsRecoverable(ErrReadOnly.With("disk full")))
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain")))
}

func TestMethod_RequiredRole(t *testing.T) {
	assert.Equal(t, ExecutorRole, Method{Name: "m", Privileged: true}.RequiredRole())
	r := UpgraderRole
	assert.Equal(t, UpgraderRole, Method{Name: "m", Privileged: true, Role: &r}.RequiredRole())
}

func TestStateView_Get(t *testing.T) {
	v := StateView{Entries: []Entry{{Key: []byte("a"), Value: []byte("1")}, {Key: []byte("c"), Value: []byte("3")}}}
	got, ok := v.Get([]byte("c"))
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), got)
	_, ok = v.Get([]byte("b"))
	assert.False(t, ok)
}

// TestABI_MethodNames 方法名为空或重复时拒绝
func TestABI_MethodNames(t *testing.T) {
	names, err := ABI{Methods: []Method{{Name: "set"}, {Name: "get"}}}.MethodNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"set", "get"}, names)

	_, err = ABI{Methods: []Method{{Name: "set"}, {Name: "set"}}}.MethodNames()
	assert.ErrorIs(t, err, ErrInvalidMetadata)
	_, err = ABI{Methods: []Method{{Name: " "}}}.MethodNames()
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}
