// Package inspect answers "show me section X of compiling this source".
// It runs the compiler, applies the error precedence rules and turns the
// result into a single display string. It is consumed by both the MCP
// server and the CLI commands.
package inspect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/ccinspect/internal/config"
	"github.com/deixis/ccinspect/internal/metrics"
	"github.com/deixis/ccinspect/internal/report"
	"github.com/deixis/ccinspect/internal/runner"
	"github.com/deixis/ccinspect/internal/sections"
)

// SourceRunner compiles source text and returns the raw output.
// Implemented by runner.Runner and runner.Fake.
type SourceRunner interface {
	Run(ctx context.Context, source string) (*runner.Result, error)
}

// Engine holds shared dependencies for all inspection requests.
type Engine struct {
	Config  *config.Config
	Runner  SourceRunner
	Store   report.Store     // optional; runs are saved when set
	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger     // optional
}

// Inspect runs the compiler once on source and records the outcome.
//
// A runner failure takes precedence over stderr, and non-blank stderr
// takes precedence over stdout: sections are only parsed when the
// process completed and wrote nothing to stderr.
func (e *Engine) Inspect(ctx context.Context, source string) *report.RunResult {
	cfg := e.config()
	log := e.logger()

	sum := sha256.Sum256([]byte(source))
	rr := &report.RunResult{
		Compiler:     cfg.CompilerPath(),
		SourceSHA256: hex.EncodeToString(sum[:]),
		CreatedAt:    time.Now().UTC(),
	}

	res, err := e.Runner.Run(ctx, source)
	switch {
	case err != nil:
		rr.ID = uuid.New().String()
		rr.Failure = runner.Kind(err)
		rr.Error = err.Error()
		log.Info("compiler invocation failed", "run_id", rr.ID, "failure", rr.Failure, "error", err)
		e.Metrics.ObserveInvocation(string(rr.Failure), 0)

	case report.HasDiagnostic(string(res.Stderr)):
		e.fillProcess(rr, res)
		rr.Stderr = string(res.Stderr)
		log.Info("compiler reported diagnostics", "run_id", rr.ID, "exit_code", res.ExitCode)
		e.Metrics.ObserveInvocation(metrics.OutcomeDiagnostic, res.Duration)

	default:
		e.fillProcess(rr, res)
		rr.Stderr = string(res.Stderr)
		doc := sections.Parser{Protocol: cfg.ProtocolVersion()}.Scan(string(res.Stdout))
		rr.Sections = doc.Sections
		rr.Preamble = doc.Preamble
		for _, k := range doc.Sections.Present() {
			e.Metrics.ObserveSection(string(k))
		}
		log.Debug("compiler output demultiplexed", "run_id", rr.ID, "sections", len(doc.Sections))
		e.Metrics.ObserveInvocation(metrics.OutcomeOK, res.Duration)
	}

	if e.Store != nil {
		if err := e.Store.Save(rr); err != nil {
			log.Warn("saving run failed", "run_id", rr.ID, "error", err)
		}
	}
	return rr
}

func (e *Engine) fillProcess(rr *report.RunResult, res *runner.Result) {
	rr.ID = res.RunID
	if rr.ID == "" {
		rr.ID = uuid.New().String()
	}
	rr.ExitCode = res.ExitCode
	rr.Truncated = res.Truncated
	rr.DurationMS = res.Duration.Milliseconds()
}

// Section runs the compiler on source and returns the display string for
// section k.
func (e *Engine) Section(ctx context.Context, source string, k sections.Key) string {
	return e.Display(e.Inspect(ctx, source), k)
}

// Display returns what to show for section k of a finished run: the
// error text if the run failed or wrote to stderr, the section text if
// it is present and non-empty, and otherwise the section's placeholder.
// A present-but-empty section is shown as "" under config.EmptyAsText.
func (e *Engine) Display(rr *report.RunResult, k sections.Key) string {
	cfg := e.config()
	if rr.Outcome() != report.OK {
		return rr.Message()
	}
	text, ok := rr.Sections.Lookup(k)
	switch {
	case ok && text != "":
		return text
	case ok && cfg.EmptyPolicy() == config.EmptyAsText:
		return ""
	default:
		return cfg.Placeholder(k)
	}
}

// GetAST returns the abstract syntax tree section for source.
func (e *Engine) GetAST(ctx context.Context, source string) string {
	return e.Section(ctx, source, sections.AST)
}

// GetIntermediate returns the intermediate code section for source.
func (e *Engine) GetIntermediate(ctx context.Context, source string) string {
	return e.Section(ctx, source, sections.Intermediate)
}

// GetSymbolTable returns the symbol table section for source.
func (e *Engine) GetSymbolTable(ctx context.Context, source string) string {
	return e.Section(ctx, source, sections.Symbol)
}

// GetProgramOutput returns the program output section for source.
func (e *Engine) GetProgramOutput(ctx context.Context, source string) string {
	return e.Section(ctx, source, sections.Output)
}

func (e *Engine) config() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return &config.Config{}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.DiscardHandler)
}
