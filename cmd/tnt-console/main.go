// Command tnt-console is an interactive REPL for issuing call-style
// invocations against a server and inspecting the decoded replies.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mickamy/go-tarantool/highlight"

	tarantool "github.com/mickamy/go-tarantool"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("tnt-console", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "tnt-console — interactive REPL for a tuple-store server\n\nUsage:\n  tnt-console [flags]\n\nCommands:\n"+
			"  ping\n  insert <space> <field...>\n  select <space> <index> <field...>\n"+
			"  delete <space> <field...>\n  call <proc> <field...>\n  quit\n\nFlags:\n")
		fs.PrintDefaults()
	}

	host := fs.String("host", tarantool.DefaultHost, "server host")
	port := fs.Int("port", tarantool.DefaultPort, "server port")
	path := fs.String("socket", "", "unix socket path (overrides host/port)")
	timeout := fs.Duration("timeout", 5*time.Second, "per-command timeout")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("tnt-console %s\n", version)
		return
	}

	cfg := tarantool.Config{Host: *host, Port: uint16(*port)}
	var h *tarantool.Handler
	var err error
	if *path != "" {
		h, err = tarantool.ConnectUnix(*path, cfg)
	} else {
		h, err = tarantool.Connect(cfg)
	}
	if err != nil {
		log.Fatalf("tnt-console: %v", err)
	}
	defer func() { _ = h.Disconnect(context.Background()) }()

	fmt.Printf("connected to %s\n", h)
	runREPL(os.Stdin, os.Stdout, h, *timeout)
}

func runREPL(in *os.File, out *os.File, h *tarantool.Handler, timeout time.Duration) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "tnt> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}

		fmt.Fprintln(out, highlight.Call(line))

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		resp, err := dispatch(ctx, h, line)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printResponse(out, resp)
	}
}

func dispatch(ctx context.Context, h *tarantool.Handler, line string) (*tarantool.Response, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty command")
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "ping":
		return h.Ping(ctx)

	case "insert":
		if len(args) < 1 {
			return nil, errors.New("usage: insert <space> <field...>")
		}
		space, err := parseSpace(args[0])
		if err != nil {
			return nil, err
		}
		return h.Insert(ctx, space, parseTuple(args[1:]))

	case "select":
		if len(args) < 2 {
			return nil, errors.New("usage: select <space> <index> <field...>")
		}
		space, err := parseSpace(args[0])
		if err != nil {
			return nil, err
		}
		index, err := parseSpace(args[1])
		if err != nil {
			return nil, err
		}
		return h.Select(ctx, space, index, nil, parseTuple(args[2:]))

	case "delete":
		if len(args) < 1 {
			return nil, errors.New("usage: delete <space> <field...>")
		}
		space, err := parseSpace(args[0])
		if err != nil {
			return nil, err
		}
		return h.Delete(ctx, space, parseTuple(args[1:]))

	case "call":
		if len(args) < 1 {
			return nil, errors.New("usage: call <proc> <field...>")
		}
		return h.Call(ctx, args[0], nil, parseTuple(args[1:]))

	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

// parseTuple casts each token to an integer field when it parses as one,
// and to a text field otherwise.
func parseTuple(tokens []string) tarantool.Tuple {
	t := make(tarantool.Tuple, len(tokens))
	for i, tok := range tokens {
		if n, err := strconv.ParseUint(tok, 10, 64); err == nil {
			t[i] = tarantool.Int(n)
			continue
		}
		t[i] = tarantool.Text(tok)
	}
	return t
}

func parseSpace(tok string) (uint32, error) {
	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid space/index number %q: %w", tok, err)
	}
	return uint32(n), nil
}

func printResponse(out *os.File, resp *tarantool.Response) {
	if len(resp.Tuples) == 0 {
		fmt.Fprintln(out, resp.String())
		return
	}
	for i, t := range resp.Tuples {
		fmt.Fprintf(out, "  %d: %s\n", i, highlight.Tuple(t))
	}
}
