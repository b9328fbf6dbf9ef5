// Command relaychat runs either side of the chat relay:
//
//	relaychat <client|server> <req_rep_endpoint> <pub_sub_endpoint>
//
// Endpoints are ws://host:port/path for websockets, or tcp://, ipc://,
// inproc:// and tls+tcp:// addresses for the scalability protocols.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/relaychat/internal/client"
	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/endpoint"
	"github.com/Tyrowin/relaychat/internal/server"
	"github.com/Tyrowin/relaychat/internal/terminal"
)

const usage = "usage: relaychat <client|server> <req_rep_endpoint> <pub_sub_endpoint>"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var osExit = os.Exit

// newDevice opens the process terminal. Tests swap it for a headless run.
var newDevice = func() terminal.Device {
	return terminal.NewScreen(nil)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	osExit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) != 3 {
		fmt.Fprintln(stderr, usage)
		return exitUsage
	}
	mode, repAddr, pubAddr := args[0], args[1], args[2]
	if mode != "client" && mode != "server" {
		fmt.Fprintf(stderr, "unknown mode %q\n%s\n", mode, usage)
		return exitUsage
	}
	for _, addr := range []string{repAddr, pubAddr} {
		if err := endpoint.Validate(addr); err != nil {
			fmt.Fprintf(stderr, "%v\n%s\n", err, usage)
			return exitUsage
		}
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "relaychat: %v\n", err)
		return exitError
	}
	closeLog, err := setupLogging(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(stderr, "relaychat: %v\n", err)
		return exitError
	}
	defer closeLog()

	if mode == "server" {
		err = runServer(ctx, cfg, repAddr, pubAddr)
	} else {
		err = runClient(ctx, cfg, repAddr, pubAddr)
	}
	if err != nil {
		// The device is closed by now, so the diagnostic is readable.
		fmt.Fprintf(stderr, "relaychat %s: %v\n", mode, err)
		return exitError
	}
	return exitOK
}

func runServer(ctx context.Context, cfg config.Config, repAddr, pubAddr string) error {
	s, err := server.Listen(cfg, repAddr, pubAddr, newDevice())
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

func runClient(ctx context.Context, cfg config.Config, repAddr, subAddr string) error {
	c, err := client.Dial(cfg, repAddr, subAddr, newDevice())
	if err != nil {
		return err
	}
	return c.Run(ctx)
}

// setupLogging sends the standard logger to path, or discards it when path
// is empty since the terminal owns the screen.
func setupLogging(path string) (func(), error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(io.Discard)
		_ = f.Close()
	}, nil
}
