package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Krishna180104/cse-leave/internal/ctxutil"
)

func TestInit_FallsBackToInfo(t *testing.T) {
	l, err := Init("not-a-level", "dev")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Closer()
	if l.Level.Level() != zap.InfoLevel {
		t.Fatalf("level = %v", l.Level.Level())
	}
}

func TestFor_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ctxutil.WithOp(ctxutil.WithAccountID(context.Background(), 7), "leave.decide")

	For(ctx, zap.New(core)).Info("decided")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["actor_id"] != int64(7) || fields["op"] != "leave.decide" {
		t.Fatalf("fields = %v", fields)
	}
}
