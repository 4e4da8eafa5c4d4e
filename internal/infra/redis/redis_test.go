package redis

import (
	"context"
	"testing"
	"time"

	"github.com/sifan077/GateLink/config"
	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options(config.RedisConfig{})
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, commandTimeout, opts.ReadTimeout)

	opts = Options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}
