// Package tarantool is an asynchronous-style client for a tuple-oriented
// in-memory database server speaking the iproto binary protocol: length-
// prefixed tuple operations over one or more long-lived TCP or unix-socket
// connections, with reconnect, pooling, and correlation-ID demultiplexing
// of interleaved replies.
package tarantool

import (
	"context"
	"time"
)

// connectTimeout bounds how long an eager (non-lazy) constructor waits for
// the first session to become ready before giving up and reporting the
// connection as failed.
const connectTimeout = 10 * time.Second

// Connect opens a single connection (PoolSize is forced to 1) and, unless
// cfg.Lazy is set, waits for it to become ready before returning.
func Connect(cfg Config) (*Handler, error) {
	cfg = cfg.withDefaults(defaultSinglePoolSize)
	cfg.PoolSize = 1
	return newHandler(cfg)
}

// ConnectLazy is Connect with cfg.Lazy forced true.
func ConnectLazy(cfg Config) (*Handler, error) {
	cfg.Lazy = true
	return Connect(cfg)
}

// ConnectPool opens cfg.PoolSize connections (default 10) and, unless
// cfg.Lazy is set, waits for at least one to become ready before
// returning.
func ConnectPool(cfg Config) (*Handler, error) {
	cfg = cfg.withDefaults(defaultMultiPoolSize)
	return newHandler(cfg)
}

// ConnectPoolLazy is ConnectPool with cfg.Lazy forced true.
func ConnectPoolLazy(cfg Config) (*Handler, error) {
	cfg.Lazy = true
	return ConnectPool(cfg)
}

// ConnectUnix is Connect against a local stream socket at path.
func ConnectUnix(path string, cfg Config) (*Handler, error) {
	cfg.Path = path
	cfg.Host = ""
	cfg.Port = 0
	return Connect(cfg)
}

// ConnectUnixLazy is ConnectUnix with cfg.Lazy forced true.
func ConnectUnixLazy(path string, cfg Config) (*Handler, error) {
	cfg.Lazy = true
	return ConnectUnix(path, cfg)
}

// ConnectUnixPool is ConnectPool against a local stream socket at path.
func ConnectUnixPool(path string, cfg Config) (*Handler, error) {
	cfg.Path = path
	cfg.Host = ""
	cfg.Port = 0
	return ConnectPool(cfg)
}

// ConnectUnixPoolLazy is ConnectUnixPool with cfg.Lazy forced true.
func ConnectUnixPoolLazy(path string, cfg Config) (*Handler, error) {
	cfg.Lazy = true
	return ConnectUnixPool(path, cfg)
}

func newHandler(cfg Config) (*Handler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pool := NewPool(cfg)
	if !cfg.Lazy {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := pool.WaitReady(ctx); err != nil {
			_ = pool.Disconnect(context.Background())
			return nil, newError(KindConnection, "initial connect", err)
		}
	}
	return NewHandler(pool, cfg), nil
}
