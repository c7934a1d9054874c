// Package testutil holds helpers shared by the SDK package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/stretchr/testify/require"
)

// NewTestContext derives from t.Context() a context with a silent logger
// and a config manager loaded from defaults. The manager closes with t.
func NewTestContext(t testing.TB) context.Context {
	t.Helper()
	ctx := logger.ContextWithLogger(t.Context(), logger.Nop())
	manager := config.NewManager(ctx, config.NewService())
	_, err := manager.Load(ctx, config.NewDefaultProvider())
	require.NoError(t, err, "load default configuration")
	t.Cleanup(func() { _ = manager.Close(context.WithoutCancel(ctx)) })
	return config.ContextWithManager(ctx, manager)
}
