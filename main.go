package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/Heliodex/minilua/bench"
	"github.com/Heliodex/minilua/net"
	. "github.com/Heliodex/minilua/types"
	"github.com/Heliodex/minilua/vm/compile"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

const usage = `Usage: minilua <command> [flags] [args]
Available commands:
  run FILE [NITER]          interpret a chunk or Lua source NITER times and print what it returns
  bench SUITE               run a YAML benchmark suite and store the results
  watch FILE [NITER]        run FILE again every time it changes
  serve                     start the execution server
  remote ADDR FILE [NITER]  run FILE on an execution server`

func colourful(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func fail(err error) {
	msg := "error: " + err.Error()
	if colourful(os.Stderr) {
		msg = "\x1b[31m" + msg + "\x1b[0m"
	}
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

// optional positional NITER, at least 1
func parseIters(args []string, i int, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}

	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s is not a number", args[i])
	} else if n < 1 {
		return 0, fmt.Errorf("iteration count must be at least 1, got %d", n)
	}
	return n, nil
}

func printValues(w io.Writer, vs []Val) {
	for _, v := range vs {
		fmt.Fprintln(w, ToString(v))
	}
}

func runFile(w io.Writer, c *compile.Compiler, path string, niter int) error {
	p, err := c.Compile(path)
	if err != nil {
		return err
	}

	r, err := bench.Run(path, p, niter)
	if err != nil {
		return err
	}

	printValues(w, r.Returns)
	return nil
}

func benchSuite(w io.Writer, cfg Config, c *compile.Compiler, path string) error {
	s, err := bench.LoadSuite(path)
	if err != nil {
		return err
	}

	rs, err := s.Run(c, cfg.Iterations)
	if err != nil {
		return err
	}

	if err = bench.Report(w, rs, s.Baseline); err != nil {
		return err
	}

	st, err := bench.OpenStore(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, r := range rs {
		if err = st.Save(r); err != nil {
			return err
		}
	}
	return nil
}

func remote(ctx context.Context, w io.Writer, c *compile.Compiler, client *net.Client, addr, path string, niter int) error {
	p, err := c.Compile(path)
	if err != nil {
		return err
	}

	// send what we loaded rather than the file, which might be source
	res, err := client.Run(ctx, addr, compile.Serialise(p), niter)
	if err != nil {
		return err
	} else if err = res.Err(); err != nil {
		return err
	}

	vs, err := res.Values()
	if err != nil {
		return err
	}

	printValues(w, vs)
	return nil
}

func serve(ctx context.Context, cfg Config) error {
	s, err := net.NewServer(cfg.Listen)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Println("Listening on", s.Addr())
	fmt.Printf("Certificate fingerprint %x\n", s.Fingerprint())
	return s.Serve(ctx)
}

func watch(ctx context.Context, cfg Config, c *compile.Compiler, path string, niter int) error {
	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return err
	}

	return watchPath(ctx, path, debounce, func() {
		start := time.Now()
		if err := runFile(os.Stdout, c, path, niter); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return
		}
		fmt.Println("--", time.Since(start))
	})
}

func main() {
	if len(os.Args) <= 1 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	fconfig := flag.String("config", "", "Config file (minilua.jsonc or minilua.toml)")
	fverbose := flag.Int("v", -1, "Log verbosity, overrides the config file")
	fluac := flag.String("luac", "", "luac binary used to compile sources")
	fpin := flag.String("pin", "", "Server certificate fingerprint for remote")
	flag.CommandLine.Parse(os.Args[2:])
	args := flag.Args()

	wd, err := os.Getwd()
	if err != nil {
		fail(err)
	}

	cfg, err := LoadConfig(*fconfig, wd)
	if err != nil {
		fail(err)
	}
	if *fverbose >= 0 {
		cfg.Verbosity = *fverbose
	}
	if *fluac != "" {
		cfg.Luac = *fluac
	}
	if *fpin != "" {
		cfg.Pin = *fpin
	}

	commonlog.Configure(cfg.Verbosity, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := compile.NewCompiler(cfg.Luac)

	need := func(n int) {
		if len(args) < n {
			fmt.Println(usage)
			os.Exit(1)
		}
	}

	var niter int
	switch cmd {
	case "run":
		need(1)
		if niter, err = parseIters(args, 1, cfg.Iterations); err != nil {
			fail(err)
		}
		err = runFile(os.Stdout, c, args[0], niter)
	case "bench":
		need(1)
		err = benchSuite(os.Stdout, cfg, c, args[0])
	case "watch":
		need(1)
		if niter, err = parseIters(args, 1, cfg.Iterations); err != nil {
			fail(err)
		}
		err = watch(ctx, cfg, c, args[0], niter)
	case "serve":
		err = serve(ctx, cfg)
	case "remote":
		need(2)
		if niter, err = parseIters(args, 2, cfg.Iterations); err != nil {
			fail(err)
		}
		var client *net.Client
		if client, err = cfg.Client(); err != nil {
			fail(err)
		}
		err = remote(ctx, os.Stdout, c, client, args[0], args[1], niter)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fail(err)
	}
}
