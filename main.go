// Command kerf evaluates a model description and writes its meshes as
// JSON.
//
//	kerf [-p key=value]... [-tolerance t] [-backend brep|sdfx] [-o out.json] model.kerf
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/model"
)

// paramFlags collects repeated -p key=value flags.
type paramFlags []string

func (p *paramFlags) String() string { return strings.Join(*p, ",") }

func (p *paramFlags) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("kerf: ")
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run parses args, evaluates the model and writes the result to stdout
// or the -o file.
func run(args []string, stdout io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("kerf", flag.ContinueOnError)
	var params paramFlags
	fs.Var(&params, "p", "model parameter `key=value` (repeatable)")
	tolerance := fs.Float64("tolerance", cfg.TessTolerance, "tessellation tolerance; 0 derives it from the model size")
	backend := fs.String("backend", cfg.Backend, "kernel backend (brep or sdfx)")
	out := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one model file, got %d arguments", fs.NArg())
	}
	cfg.TessTolerance = *tolerance
	cfg.Backend = *backend

	if cfg.Debug {
		kernel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	kc, err := cfg.kernelConfig()
	if err != nil {
		return err
	}
	factory, err := cfg.factory()
	if err != nil {
		return err
	}
	p, err := model.ParseParams(params)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading model: %w", err)
	}

	app := NewApp(factory, kc, p)
	defer app.Close()
	result := app.Evaluate(context.Background(), string(source))

	if *out != "" {
		err = writeFile(*out, result)
	} else {
		err = writeResult(stdout, result)
	}
	if err != nil {
		return err
	}

	for _, e := range result.Warnings {
		log.Printf("warning: %s", e.Message)
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			if e.Line > 0 {
				log.Printf("line %d: %s", e.Line, e.Message)
			} else {
				log.Printf("%s", e.Message)
			}
		}
		return fmt.Errorf("%d errors", len(result.Errors))
	}
	log.Printf("%d shapes, %d triangles", len(result.Meshes), triangleCount(result.Meshes))
	return nil
}

// createFile opens the -o output file.
var createFile = func(name string) (io.WriteCloser, error) { return os.Create(name) }

// writeFile writes result to the named file. A failed close is reported,
// since buffered data may not have reached the disk.
func writeFile(name string, result EvalResult) (err error) {
	f, err := createFile(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", name, cerr)
		}
	}()
	return writeResult(f, result)
}

func writeResult(w io.Writer, result EvalResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

func triangleCount(ms []MeshData) int {
	return lo.SumBy(ms, func(m MeshData) int { return len(m.Indices) / 3 })
}
