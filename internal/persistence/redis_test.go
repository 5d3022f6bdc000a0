package persistence

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/fixmypidge/case-service/internal/config"
)

func TestNewRedisWithoutAddrLeavesClientNil(t *testing.T) {
	r := NewRedis(config.RedisConfig{}, zap.NewNop())
	if r.Client != nil {
		t.Fatal("empty address must not construct a client")
	}
	if err := r.Ping(context.Background()); err == nil {
		t.Fatal("ping without a client must fail")
	}
	r.Close()
}

func TestNewRedisWithAddrConstructsClient(t *testing.T) {
	r := NewRedis(config.RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	defer r.Close()
	if r.Client == nil {
		t.Fatal("configured address must construct a client")
	}
}
