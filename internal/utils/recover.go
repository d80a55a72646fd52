package utils

import (
	"context"
	"runtime/debug"

	"github.com/quy267/spring-drools-integration-sub002/internal/logger"
)

// RecoverWithContext recovers from a panic and logs the stack trace with the provided context.
func RecoverWithContext(ctx context.Context, name string) {
	if r := recover(); r != nil {
		logger.WithContext(ctx).Errorf("%v panic : %v", name, string(debug.Stack()))
	}
}
