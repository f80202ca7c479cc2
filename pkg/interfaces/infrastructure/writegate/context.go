package writegate

import (
	"context"
	"errors"
)

// ErrWriteBlocked 写门闸拒绝写操作
var ErrWriteBlocked = errors.New("write blocked")

type ctxKey struct{}

// WithWriteToken 将恢复模式 token 绑定到 context
//
//	token, err := gate.EnableRecoveryMode("restore")
//	if err != nil {
//	    return err
//	}
//	defer gate.DisableRecoveryMode(token)
//	ctx = writegate.WithWriteToken(ctx, token)
func WithWriteToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

// TokenFromContext 读取 context 中的 token，不存在时返回空串
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKey{}).(string); ok {
		return s
	}
	return ""
}
