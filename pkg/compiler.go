package bask

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type Arch string
type Vendor string
type OS string

const (
	X86_64  Arch = "x86_64"
	AArch64 Arch = "aarch64"

	Unknown Vendor = "unknown"

	Windows OS = "windows"
	Linux   OS = "linux"
	Darwin  OS = "darwin"
)

// IRFile is where the textual IR lands when the IR dump is enabled.
const IRFile = "output.ir"

// ObjectFile is where the relocatable object is written.
const ObjectFile = "output.o"

// Target identifies the machine the object file is produced for.
type Target struct {
	Arch   Arch
	Vendor Vendor
	OS     OS
}

// HostTarget resolves the triple of the machine the compiler runs on.
func HostTarget() Target {
	arch := X86_64
	if runtime.GOARCH == "arm64" {
		arch = AArch64
	}

	host := Linux
	switch runtime.GOOS {
	case "windows":
		host = Windows
	case "darwin":
		host = Darwin
	}

	return Target{Arch: arch, Vendor: Unknown, OS: host}
}

func (t Target) String() string {
	return fmt.Sprintf("%s-%s-%s", t.Arch, t.Vendor, t.OS)
}

// Options toggle the diagnostic outputs of a compilation.
type Options struct {
	// DumpTokens prints the token stream to stdout.
	DumpTokens bool
	// DumpTree prints the parsed tree to stdout.
	DumpTree bool
	// DumpIR writes the textual IR to IRFile and to stderr.
	DumpIR bool
}

// Compiler wires the full pipeline: source text → tokens → tree → IR module
// → object file. Each stage fully materializes its output before the next
// begins; any failure aborts the run.
type Compiler struct {
	target Target
	opts   Options
}

func NewCompiler(target Target, opts Options) *Compiler {
	return &Compiler{
		target: target,
		opts:   opts,
	}
}

// Frontend runs lex, parse and lowering on the file at path and returns the
// finished module, emitting the diagnostics selected in Options along the
// way.
func (c *Compiler) Frontend(path string) (*ir.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "File Read Error")
	}

	toks, err := NewLexer().Tokenize(string(src))
	if err != nil {
		return nil, err
	}
	if c.opts.DumpTokens {
		for _, t := range toks {
			fmt.Println(t)
		}
	}

	tree, err := NewParser().Parse(toks)
	if err != nil {
		return nil, err
	}
	if c.opts.DumpTree {
		fmt.Print(Dump(tree))
	}

	gen := NewGenerator()
	if err := gen.Generate(tree); err != nil {
		return nil, err
	}

	mod := gen.Module()
	if c.opts.DumpIR {
		if err := os.WriteFile(IRFile, []byte(mod.String()), 0o644); err != nil {
			return nil, errors.Wrap(err, "IR Write Error")
		}
		fmt.Fprint(os.Stderr, mod.String())
	}

	return mod, nil
}

// Compile runs the frontend and assembles the module into ObjectFile.
func (c *Compiler) Compile(path string) error {
	mod, err := c.Frontend(path)
	if err != nil {
		return err
	}

	return c.build(mod)
}

// build hands the textual IR to clang, which owns optimization, target
// lowering and object emission.
func (c *Compiler) build(mod *ir.Module) error {
	cmd := exec.Command("clang",
		"-x", "ir",
		"--target="+c.target.String(),
		"-O2",
		"-c",
		"-o", ObjectFile,
		"-",
	)

	r, w := io.Pipe()
	cmd.Stdin = r

	errs := errgroup.Group{}
	errs.Go(func() error {
		if _, err := io.WriteString(w, mod.String()); err != nil {
			return err
		}

		return w.Close()
	})

	errs.Go(func() error {
		if out, err := cmd.CombinedOutput(); err != nil {
			return errors.Errorf("%v: %s", err, out)
		}

		return nil
	})

	return errs.Wait()
}
