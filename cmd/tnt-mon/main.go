// Command tnt-mon is a live terminal dashboard over a connection pool's
// diagnostic event stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	tarantool "github.com/mickamy/go-tarantool"
	"github.com/mickamy/go-tarantool/internal/tui"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("tnt-mon", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "tnt-mon — watch a connection pool's session state in real time\n\nUsage:\n  tnt-mon [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	host := fs.String("host", tarantool.DefaultHost, "server host")
	port := fs.Int("port", tarantool.DefaultPort, "server port")
	path := fs.String("socket", "", "unix socket path (overrides host/port)")
	poolSize := fs.Int("pool-size", 5, "number of pooled connections to watch")
	maxReconnectDelay := fs.Duration("max-reconnect-delay", 10*time.Second, "capped reconnect backoff")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("tnt-mon %s\n", version)
		return
	}

	cfg := tarantool.Config{
		Host:              *host,
		Port:              uint16(*port),
		Path:              *path,
		PoolSize:          *poolSize,
		Lazy:              true,
		MaxReconnectDelay: *maxReconnectDelay,
	}

	var h *tarantool.Handler
	var err error
	if *path != "" {
		h, err = tarantool.ConnectUnixPoolLazy(*path, cfg)
	} else {
		h, err = tarantool.ConnectPoolLazy(cfg)
	}
	if err != nil {
		log.Fatalf("tnt-mon: %v", err)
	}
	defer func() { _ = h.Disconnect(context.Background()) }()

	target := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if cfg.Path != "" {
		target = cfg.Path
	}

	p := tea.NewProgram(tui.New(target, h))
	if _, err := p.Run(); err != nil {
		log.Fatalf("tnt-mon: %v", err)
	}
}
