package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	lisp "github.com/rphilander/lisp/core"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	sockPath := envOr("LISP_SOCK", "/tmp/lisp.sock")
	dir := envOr("LISP_DIR", ".")
	dbPath := envOr("LISP_DB", filepath.Join(dir, "lisp-history.db"))

	opts := lisp.Options{}
	opts.Permissive, _ = strconv.ParseBool(os.Getenv("LISP_PERMISSIVE"))
	if n, err := strconv.Atoi(os.Getenv("LISP_MAX_TRACES")); err == nil {
		opts.MaxTraces = n
	}
	if n, err := strconv.Atoi(os.Getenv("LISP_MAX_DEPTH")); err == nil {
		opts.MaxDepth = n
	}

	store, err := lisp.OpenStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open history: %v", err)
	}

	core, err := lisp.NewCore(sockPath, store, opts)
	if err != nil {
		store.Close()
		log.Fatalf("failed to start core: %v", err)
	}

	// Handle shutdown signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("shutting down...")
		core.Shutdown()
		os.Exit(0)
	}()

	log.Printf("lisp core listening (socket: %s, history: %s)", sockPath, dbPath)
	core.Run()
}
