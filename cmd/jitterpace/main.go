package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jitterpace/internal/app"
	"jitterpace/internal/probe"
	"jitterpace/pkg/logx"
	"jitterpace/pkg/pace"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runOnce(os.Args[2:])
	case "daemon":
		runDaemon(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  jitterpace run    [flags]   one bounded measurement run, report to stdout
  jitterpace daemon [flags]   run configured probes until interrupted`)
}

// runOnce is the CLI equivalent of a single bounded probe: drive a no-op
// (or spinning) action at a jittered period and print the report.
func runOnce(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		period   = fs.Duration("period", time.Millisecond, "nominal period between ticks")
		jmin     = fs.Duration("jitter-min", 100*time.Microsecond, "minimum jitter")
		jmax     = fs.Duration("jitter-max", 500*time.Microsecond, "maximum jitter")
		count    = fs.Int("count", 1000, "iterations to run")
		spin     = fs.Duration("spin", 0, "busy-loop workload per iteration (0 = no-op)")
		seed     = fs.Int64("seed", 0, "jitter RNG seed (0 = from clock)")
		logLevel = fs.String("log-level", "warn", "log level (trace/debug/info/warn/error)")
	)
	_ = fs.Parse(args)

	log := logx.NewConsole(*logLevel)

	jr, err := pace.NewJitterRange(*jmin, *jmax)
	if err != nil {
		fatal(err)
	}
	var work func()
	if *spin > 0 {
		work = probe.SpinWork(*spin)
	}

	r, err := probe.New(probe.Spec{
		Name:   "cli",
		Period: *period,
		Jitter: jr,
		Count:  *count,
		Work:   work,
		Seed:   *seed,
	}, log)
	if err != nil {
		fatal(err)
	}

	rep, err := r.Run()
	if err != nil {
		fatal(err)
	}
	fmt.Print(rep.String())
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	cfgPath := fs.String("config", "./jitterpace.yaml", "path to config file (yaml or json)")
	_ = fs.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(*cfgPath)
	if err != nil {
		fatal(err)
	}
	if err := a.Start(ctx); err != nil {
		fatal(fmt.Errorf("start: %w", err))
	}

	<-ctx.Done()
	if err := a.Stop(context.Background()); err != nil {
		fatal(fmt.Errorf("stop: %w", err))
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal:", err)
	os.Exit(1)
}
