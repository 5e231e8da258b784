// Command pff extracts frames and sound tracks from PFF cutscene files and
// converts them to regular video files with ffmpeg.
//
// Usage:
//
//	pff [-debug] extract [-zstd] [-j N] <outdir> <file or url>...
//	pff [-debug] convert [-x265] [-preset P] [-crf N] <file or url> <output>
//	pff [-debug] info [-json] [-j N] <file or url>...
//
// Set DEBUG to any value to enable debug logging, and FFMPEG to the ffmpeg binary to use.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

var errUsage = errors.New("usage")

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"extract", "extract frames and sound tracks", runExtract},
	{"convert", "convert to a video file with ffmpeg", runConvert},
	{"info", "print document information", runInfo},
}

func main() {
	debug := flag.Bool("debug", os.Getenv("DEBUG") != "", "enable debug logging")
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := flag.Arg(0)
	if name == "version" {
		fmt.Println(version)

		return
	}

	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}

		if err := cmd.run(ctx, flag.Args()[1:]); err != nil {
			if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
				os.Exit(2)
			}

			slog.Error(name+" failed", "error", err)
			os.Exit(1)
		}

		return
	}

	fmt.Fprintf(os.Stderr, "unknown command: %s\n", name)
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-debug] <command> [arguments]\n\ncommands:\n", os.Args[0])
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.name, cmd.usage)
	}
	fmt.Fprintf(os.Stderr, "  %-8s %s\n\n", "version", "print version")
	flag.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
