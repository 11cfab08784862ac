package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
)

// ToolchainOptions configures the clang-based Compiler.
type ToolchainOptions struct {
	// Clang is the compiler executable name or path.
	Clang string
	// Flags precede the fixed shared-object flags, e.g. ["-O0"].
	Flags []string
	// Timeout bounds a single compilation.
	Timeout time.Duration
	// WorkDir is the parent of the scratch directory; empty means os.TempDir.
	WorkDir string
	// MaxConcurrent bounds simultaneous clang processes.
	MaxConcurrent int64
	// Observe, if set, receives the duration and outcome of each compile.
	Observe func(took time.Duration, err error)
}

// Toolchain compiles IR with clang into shared objects and loads them.
type Toolchain struct {
	opts   ToolchainOptions
	dir    string
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// NewToolchain creates a scratch directory and returns a Toolchain. Close
// removes the directory.
func NewToolchain(opts ToolchainOptions, logger *zap.Logger) (*Toolchain, error) {
	if opts.Clang == "" {
		opts.Clang = "clang"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dir, err := os.MkdirTemp(opts.WorkDir, "irtune-")
	if err != nil {
		return nil, fmt.Errorf("create toolchain workdir: %w", err)
	}
	return &Toolchain{
		opts:   opts,
		dir:    dir,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		logger: logger.With(zap.String("component", "toolchain")),
	}, nil
}

// Available reports whether the configured clang can be found.
func (t *Toolchain) Available() bool {
	_, err := exec.LookPath(t.opts.Clang)
	return err == nil
}

// Close removes the scratch directory. Libraries still loaded keep working
// on platforms that allow unlinking mapped files.
func (t *Toolchain) Close() error {
	return os.RemoveAll(t.dir)
}

func (t *Toolchain) args(src, out string) []string {
	args := make([]string, 0, len(t.opts.Flags)+8)
	args = append(args, t.opts.Flags...)
	return append(args, "-shared", "-fPIC", "-Wno-override-module", "-x", "ir", src, "-o", out)
}

// Compile implements Compiler. Every call writes to fresh file names, so a
// recompiled module is never served from the dynamic loader's cache.
func (t *Toolchain) Compile(ctx context.Context, ir string) (lib Library, err error) {
	start := time.Now()
	defer func() {
		if t.opts.Observe != nil {
			t.opts.Observe(time.Since(start), err)
		}
	}()

	if strings.TrimSpace(ir) == "" {
		return nil, compileErr("empty IR", nil, "")
	}
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, compileErr("waiting for a compile slot", err, "")
	}
	defer t.sem.Release(1)

	name := uuid.NewString()
	src := filepath.Join(t.dir, name+".ll")
	out := filepath.Join(t.dir, name+".so")
	if err := os.WriteFile(src, []byte(ir), 0o600); err != nil {
		return nil, compileErr("write IR", err, "")
	}
	defer os.Remove(src)

	cctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	var diag bytes.Buffer
	cmd := exec.CommandContext(cctx, t.opts.Clang, t.args(src, out)...)
	cmd.Stdout = &diag
	cmd.Stderr = &diag

	t.logger.Debug("compiling IR", zap.String("module", name), zap.Strings("args", cmd.Args))
	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, compileErr(fmt.Sprintf("compilation timed out after %s", t.opts.Timeout), cctx.Err(), diag.String())
		}
		t.logger.Warn("clang rejected IR", zap.String("module", name), zap.Error(err), zap.String("diagnostic", diag.String()))
		return nil, compileErr("clang rejected IR", err, diag.String())
	}

	loaded, err := openLibrary(out)
	if err != nil {
		_ = os.Remove(out)
		return nil, compileErr("load shared object", err, diag.String())
	}
	t.logger.Debug("compiled IR", zap.String("module", name), zap.Duration("took", time.Since(start)))
	return loaded, nil
}

func compileErr(msg string, err error, diagnostic string) error {
	var e *apperrors.Error
	if err == nil {
		e = apperrors.New(apperrors.CompileError, msg)
	} else {
		e = apperrors.Wrap(apperrors.CompileError, err, msg)
	}
	return e.WithComponent("toolchain").WithOperation("Compile").WithDetail(strings.TrimSpace(diagnostic))
}
