package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

func TestRuntimeClosesInReverseOrder(t *testing.T) {
	rt := &Runtime{Config: &config.Config{}}
	var order []string
	for _, name := range []string{"database", "redis", "pubsub"} {
		rt.OnClose(name, func() error {
			order = append(order, name)
			if name == "redis" {
				return errors.New("already closed")
			}
			return nil
		})
	}

	rt.Close()
	rt.Close()

	assert.Equal(t, []string{"pubsub", "redis", "database"}, order)
}

func TestScopeKeepsBaseFields(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Service.Kind = "cron-worker"
	rt := &Runtime{Config: cfg, Logger: logger.New(logger.Options{ServiceName: "test"})}

	ctx := rt.Scope(context.Background(), map[string]any{"schedule": "@every 1m"})
	assert.NotEqual(t, context.Background(), ctx)
}

func TestServeDrains(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	shutdown := Serve(context.Background(), nil, srv)
	shutdown()

	_, err = http.Get("http://" + addr + "/")
	assert.Error(t, err)
}
