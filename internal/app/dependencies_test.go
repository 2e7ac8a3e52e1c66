package app

import (
	"context"
	"testing"

	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func TestNewDependencies_LocalFallbacks(t *testing.T) {
	deps, err := NewDependencies(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if _, ok := deps.Store.(*memory.Store); !ok {
		t.Errorf("empty dsn must fall back to memory store, got %T", deps.Store)
	}
	if deps.Idempotency == nil {
		t.Error("idempotency store must always be configured")
	}
	if deps.Mailer == nil {
		t.Error("mailer must fall back to noop")
	}
	if deps.Gateway == nil {
		t.Error("payment gateway must be configured")
	}
	if deps.Publisher != nil {
		t.Error("publisher must be nil without kafka brokers")
	}
	if deps.Redis != nil || deps.KafkaProducer != nil || deps.Postgres != nil {
		t.Error("no external clients expected for empty config")
	}
}
