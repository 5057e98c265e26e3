// Command storagebench is the coordinator/master CLI entrypoint: it parses
// a minimal set of flags into an internal/config.Config, drives the
// configured phase sequence either locally or against a list of remote
// storagebench-service hosts, and renders the resulting table. Elaborate
// flag parsing, help text, and live single-line/full-screen rendering are
// explicitly out of scope (spec.md §1) and are not built out beyond this
// minimal usable CLI.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/coordinator"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
	"github.com/TheEntropyCollective/storagebench/internal/unittk"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("storagebench", flag.ContinueOnError)

	path := fs.String("path", "", "comma-separated benchmark path(s)")
	threads := fs.Int("threads", 1, "worker threads per participant")
	dirs := fs.Int("dirs", 1, "directories per thread (directory mode)")
	files := fs.Int("files", 1, "files per directory (directory mode)")
	size := fs.String("size", "1M", "file size (K/M/G/T/P/E suffixes accepted)")
	block := fs.String("block", "128K", "block size")
	direct := fs.Bool("direct", false, "use O_DIRECT")
	rand := fs.Bool("rand", false, "random offsets instead of sequential")
	randalign := fs.Bool("randalign", false, "align random offsets to block size")
	randamount := fs.String("randamount", "0", "total random bytes, divided evenly across dataset threads")
	iodepth := fs.Uint64("iodepth", 1, "outstanding async requests per worker (1 = sync)")
	verify := fs.Uint64("verify", 0, "integrity-check salt (0 disables)")
	mkdirs := fs.Bool("mkdirs", false, "run create-dirs phase")
	write := fs.Bool("write", false, "run create-files phase")
	read := fs.Bool("read", false, "run read-files phase")
	statfiles := fs.Bool("statfiles", false, "run stat-files phase")
	delfiles := fs.Bool("delfiles", false, "run delete-files phase")
	deldirs := fs.Bool("deldirs", false, "run delete-dirs phase")
	syncphase := fs.Bool("syncphase", false, "run sync between phases")
	dropcaches := fs.Bool("dropcaches", false, "run drop-caches between phases")
	nodelerr := fs.Bool("nodelerr", true, "ignore ENOENT on delete")
	timelimit := fs.Int("timelimitseconds", 0, "phase time limit in seconds (0 = unlimited)")
	hosts := fs.String("hosts", "", "comma-separated remote storagebench-service hosts (empty = local mode)")
	rankoffset := fs.Uint64("rankoffset", 0, "rank offset added to every worker's rank")
	logLevel := fs.String("loglevel", "info", "debug|info|warn|error")
	logFormat := fs.String("logformat", "text", "text|json")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	sizeBytes, err := unittk.ParseBytes(*size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storagebench: %v\n", err)
		return 2
	}
	blockBytes, err := unittk.ParseBytes(*block)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storagebench: %v\n", err)
		return 2
	}
	randAmountBytes, err := unittk.ParseBytes(*randamount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storagebench: %v\n", err)
		return 2
	}

	level, err := logging.ParseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storagebench: %v\n", err)
		return 2
	}
	format, err := logging.ParseLogFormat(*logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storagebench: %v\n", err)
		return 2
	}
	logger := logging.New(&logging.Config{Level: level, Format: format, Output: os.Stderr, Component: "coordinator"})

	cfg := config.DefaultConfig()
	cfg.Path = config.ParsePathList(*path)
	cfg.Threads = *threads
	cfg.DatasetThreads = *threads
	cfg.Dirs = *dirs
	cfg.Files = *files
	cfg.Size = sizeBytes
	cfg.Block = blockBytes
	cfg.Direct = *direct
	cfg.Rand = *rand
	cfg.RandAlign = *randalign
	cfg.RandAmount = randAmountBytes
	cfg.IODepth = *iodepth
	cfg.Verify = *verify
	cfg.MkDirs = *mkdirs
	cfg.Write = *write
	cfg.Read = *read
	cfg.StatFiles = *statfiles
	cfg.DelFiles = *delfiles
	cfg.DelDirs = *deldirs
	cfg.SyncPhase = *syncphase
	cfg.DropCaches = *dropcaches
	cfg.NoDelErr = *nodelerr
	cfg.TimeLimitSeconds = *timelimit
	cfg.RankOffset = *rankoffset
	if *hosts != "" {
		cfg.Hosts = splitNonEmpty(*hosts, ",")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "storagebench: %v\n", err)
		return 2
	}

	co, err := coordinator.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storagebench: %v\n", err)
		return 1
	}
	defer co.Close()

	stop := co.WatchInterrupts()
	defer stop()

	report, runErr := co.Run()
	coordinator.RenderTable(os.Stdout, report)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "storagebench: %v\n", runErr)
	}
	return coordinator.ExitCode(runErr)
}

func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
