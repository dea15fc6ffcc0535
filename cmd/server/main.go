package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janpfeifer/TypeRace/internal/server"
	"k8s.io/klog/v2"
)

var (
	flagAddr = flag.String("addr", "", "Address to listen on (default: $RACE_ADDR, or :3001)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg, err := server.LoadConfig()
	if err != nil {
		klog.Exitf("Invalid configuration: %v", err)
	}
	if *flagAddr != "" {
		cfg.Addr = *flagAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := make(chan *server.ServerState, 1)
	go func() {
		state := <-started
		fmt.Printf("TypeRace server listening on ws://%s/ws\n", state.Address)
	}()

	if err := server.Run(ctx, cfg, started); err != nil {
		klog.Exitf("Server error: %v", err)
	}
}
