// Command ccinspect runs a compiler and shows one section of its output.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/deixis/ccinspect"
	"github.com/deixis/ccinspect/internal/config"
	"github.com/deixis/ccinspect/internal/inspect"
	ccmcp "github.com/deixis/ccinspect/internal/mcp"
	"github.com/deixis/ccinspect/internal/metrics"
	"github.com/deixis/ccinspect/internal/report"
	"github.com/deixis/ccinspect/internal/sections"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("ccinspect: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "ast", "ir", "intermediate", "symbols", "output":
		err = sectionMain(cmd, args)
	case "run":
		err = runMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(ccinspect.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "ccinspect: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		log.Fatal(err)
	}
}

// exitCode makes main exit with the given status without logging; the
// command has already written its own output.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: ccinspect <command> [flags] [file]

Commands:
  ast         Show the abstract syntax tree
  ir          Show the intermediate code
  symbols     Show the symbol table
  output      Show the program output
  run         Compile once and summarise every section
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Source is read from file, or from stdin when file is omitted or "-".
Use "ccinspect <command> -h" for command-specific flags.`)
}

// --- sections ---

func sectionMain(name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	k, err := sections.ParseKey(name)
	if err != nil {
		return err
	}

	source, err := readInput(fs.Arg(0), os.Stdin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(common, nil)
	if err != nil {
		return err
	}

	return writeSection(os.Stdout, os.Stderr, eng, eng.Inspect(ctx, source), k)
}

// writeSection prints section k of rr to stdout, or the error text to
// stderr with exit status 1.
func writeSection(stdout, stderr io.Writer, eng *inspect.Engine, rr *report.RunResult, k sections.Key) error {
	text := eng.Display(rr, k)
	if rr.Outcome() != report.OK {
		fmt.Fprint(stderr, withNewline(text))
		return exitCode(1)
	}
	fmt.Fprint(stdout, withNewline(text))
	return nil
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := addCommonFlags(fs)
	jsonFlag := fs.Bool("json", false, "output the run as JSON")
	_ = fs.Parse(args)

	source, err := readInput(fs.Arg(0), os.Stdin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := newEngine(common, nil)
	if err != nil {
		return err
	}

	return writeRun(os.Stdout, eng, eng.Inspect(ctx, source), *jsonFlag)
}

// writeRun prints rr as JSON or as a summary. A run that is not OK
// yields exit status 1.
func writeRun(w io.Writer, eng *inspect.Engine, rr *report.RunResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rr); err != nil {
			return err
		}
	} else {
		fmt.Fprint(w, formatRunCLI(eng, rr))
	}

	if rr.Outcome() != report.OK {
		return exitCode(1)
	}
	return nil
}

func formatRunCLI(eng *inspect.Engine, rr *report.RunResult) string {
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	switch rr.Outcome() {
	case report.Failure:
		w("FAIL (%s)\n\n%s\n", rr.Failure, rr.Error)
		return string(b)
	case report.Diagnostic:
		w("FAIL (diagnostic, exit %d)\n\n%s", rr.ExitCode, withNewline(rr.Stderr))
		return string(b)
	}

	w("ok  run %s  %dms\n", rr.ID, rr.DurationMS)
	if rr.Truncated {
		w("warning: compiler output was truncated\n")
	}
	for _, k := range sections.Keys() {
		w("\n=== %s ===\n", k.Title())
		w("%s", withNewline(eng.Display(rr, k)))
	}
	return string(b)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	common := addCommonFlags(fs)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090); also serves /metrics")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(ccmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, common, *httpAddr)
}

func serve(ctx context.Context, common *commonFlags, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	m := metrics.New()
	eng, err := newEngine(common, m)
	if err != nil {
		return err
	}

	server := ccmcp.NewServer(eng, workspace)

	if httpAddr != "" {
		return serveHTTP(ctx, server, m, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, m *metrics.Metrics, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", handler)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

type commonFlags struct {
	compiler *string
	timeout  *time.Duration
	verbose  *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		compiler: fs.String("compiler", "", "override configured compiler path"),
		timeout:  fs.Duration("timeout", 0, "override configured timeout (e.g. 30s)"),
		verbose:  fs.Bool("v", false, "log compiler invocations to stderr"),
	}
}

func newEngine(common *commonFlags, m *metrics.Metrics) (*inspect.Engine, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config
	if *common.compiler != "" {
		abs, err := filepath.Abs(*common.compiler)
		if err != nil {
			return nil, fmt.Errorf("resolving compiler: %w", err)
		}
		cfg.Compiler = abs
	}
	if *common.timeout > 0 {
		cfg.RawTimeout = common.timeout.String()
	}

	return inspect.New(cfg, m, newLogger(*common.verbose)), nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// readInput reads the source from path, or from stdin when path is
// empty or "-".
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
