package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	lisp "github.com/rphilander/lisp/core"
)

const (
	historyFile = ".lisp_history"
	promptMain  = "lisp> "
	promptCont  = "...   "
)

var (
	expr        = flag.String("e", "", "evaluate this program instead of reading files")
	interactive = flag.Bool("i", false, "start the REPL")
	permissive  = flag.Bool("permissive", false, "unbound identifiers and bad eval yield nil instead of errors")
	maxDepth    = flag.Int("max-depth", lisp.DefaultMaxDepth, "maximum nested evaluation depth (0 = unlimited)")
	historyDB   = flag.String("history", os.Getenv("LISP_DB"), "record runs in this SQLite database")
)

func newEvaluator() *lisp.Evaluator {
	ev := lisp.NewEvaluator()
	ev.Permissive = *permissive
	ev.MaxDepth = *maxDepth
	return ev
}

func main() {
	flag.Parse()
	os.Exit(run())
}

// run returns the process exit status; deferred cleanup has run by the time
// main exits.
func run() int {
	var store *lisp.Store
	if *historyDB != "" {
		var err error
		store, err = lisp.OpenStore(*historyDB)
		if err != nil {
			log.Printf("open history: %v", err)
			return 1
		}
		defer store.Close()
	}

	switch {
	case *expr != "":
		return runSource(store, "-e", *expr)
	case flag.NArg() > 0:
		status := 0
		for _, path := range flag.Args() {
			src, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
				return 1
			}
			if runSource(store, path, string(src)) != 0 {
				status = 1
			}
		}
		return status
	case *interactive || isTerminal(os.Stdin):
		return repl()
	default:
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
			return 1
		}
		return runSource(store, "stdin", string(src))
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// runSource runs one program in a fresh root environment. Output goes
// straight to stdout; it is also captured for the history store.
func runSource(store *lisp.Store, name, src string) int {
	ev := newEvaluator()
	var captured strings.Builder
	if store != nil {
		ev.Stdout = io.MultiWriter(os.Stdout, &captured)
	}

	start := time.Now()
	errs := ev.RunSource(src, lisp.NewRootEnv())

	if store != nil {
		trace := &lisp.Trace{
			Op:        "run",
			Source:    src,
			Output:    captured.String(),
			Timestamp: start.UTC().Format(time.RFC3339),
			Duration:  time.Since(start),
		}
		for _, err := range errs {
			trace.Errors = append(trace.Errors, err.Error())
		}
		if err := store.Record(trace); err != nil {
			log.Printf("record %s: %v", name, err)
		}
	}
	if len(errs) > 0 {
		return 1
	}
	return 0
}

func repl() int {
	fmt.Println("lisp REPL. Ctrl+C cancels input, Ctrl+D exits. Type :quit to exit.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	ev := newEvaluator()
	env := lisp.NewRootEnv()
	ln.SetCompleter(func(line string) []string {
		return complete(env, line)
	})

	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return 0
		}

		switch strings.TrimSpace(code) {
		case "":
			continue
		case ":quit":
			return 0
		case ":reset":
			env = lisp.NewRootEnv()
			continue
		}

		v, err := ev.EvalString(code, env)
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println(v.Show())
	}
}

// readByParseProbe keeps prompting while the buffered input is an
// incomplete program.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, perr := lisp.Parse(src); perr != nil && lisp.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}

// complete offers bound names for the token under the cursor.
func complete(env *lisp.Env, line string) []string {
	i := strings.LastIndexAny(line, " \t()[]'")
	prefix, word := line[:i+1], line[i+1:]
	if word == "" {
		return nil
	}
	var out []string
	for _, name := range env.Names() {
		if strings.HasPrefix(name, word) {
			out = append(out, prefix+name)
		}
	}
	return out
}
