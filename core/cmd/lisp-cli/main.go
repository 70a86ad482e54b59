package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	lisp "github.com/rphilander/lisp/core"
)

// lisp-cli sends one request to the daemon. With -op it builds the request
// from its arguments; otherwise it reads a JSON request from stdin.
func main() {
	op := flag.String("op", "", "operation (run, eval, reset, history, clear)")
	limit := flag.Int("limit", 0, "history limit")
	flag.Parse()

	sockPath := os.Getenv("LISP_SOCK")
	if sockPath == "" {
		sockPath = "/tmp/lisp.sock"
	}

	var msg map[string]any
	if *op != "" {
		msg = map[string]any{"op": *op}
		switch *op {
		case "run", "eval":
			src, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
				os.Exit(1)
			}
			msg["src"] = string(src)
		case "history":
			msg["limit"] = *limit
		}
	} else {
		// Read JSON from stdin
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			fmt.Fprintf(os.Stderr, "parse JSON: %v\n", err)
			os.Exit(1)
		}
	}

	// Add id if missing
	if _, ok := msg["id"]; !ok {
		msg["id"] = lisp.NextID()
	}

	// Connect to core
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Send request
	if err := lisp.WriteMsg(conn, msg); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}

	// Read response
	resp, err := lisp.ReadMsg(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "receive: %v\n", err)
		os.Exit(1)
	}

	// Print response
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "format response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
