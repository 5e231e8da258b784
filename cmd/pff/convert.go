package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var presets = []string{
	"ultrafast",
	"superfast",
	"veryfast",
	"faster",
	"fast",
	"medium",
	"slow",
	"slower",
	"veryslow",
	"placebo",
}

type convertConfig struct {
	ffmpeg string
	x265   bool
	preset string
	crf    int
}

func runConvert(ctx context.Context, args []string) error {
	cfg := convertConfig{}

	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.BoolVar(&cfg.x265, "x265", false, "use x265 instead of x264")
	fs.StringVar(&cfg.preset, "preset", "medium", "x264/x265 preset: "+strings.Join(presets, ", "))
	fs.IntVar(&cfg.crf, "crf", 23, "x264/x265 CRF value")
	fs.StringVar(&cfg.ffmpeg, "ffmpeg", envOr("FFMPEG", "ffmpeg"), "ffmpeg binary")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: pff convert [-x265] [-preset P] [-crf N] <file or url> <output>\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 2 {
		fs.Usage()

		return errUsage
	}

	if !slices.Contains(presets, cfg.preset) {
		return fmt.Errorf("unknown preset %q", cfg.preset)
	}

	return convert(ctx, cfg, fs.Arg(0), fs.Arg(1))
}

func convert(ctx context.Context, cfg convertConfig, input, output string) error {
	dir, err := os.MkdirTemp("", "pff-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	res, err := extract(ctx, extractConfig{outDir: dir}, input)
	if err != nil {
		return err
	}

	if res.images == 0 {
		return errors.New("document without images")
	}

	// ffmpeg needs a constant rate for an image sequence.
	if res.framerateErr != nil {
		return res.framerateErr
	}

	args := ffmpegCommand(cfg, res, output).GetArgs()
	slog.Debug("running ffmpeg", "binary", cfg.ffmpeg, "args", args)

	cmd := exec.CommandContext(ctx, cfg.ffmpeg, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}

	slog.Info("converted", "input", input, "output", output, "frames", res.frames, "fps", res.framerate)

	return nil
}

// ffmpegCommand encodes the extracted image sequence at the detected frame rate
// and copies every sound track into output.
func ffmpegCommand(cfg convertConfig, res *extractResult, output string) *ffmpeg.Stream {
	codec := "libx264"
	if cfg.x265 {
		codec = "libx265"
	}

	streams := []*ffmpeg.Stream{
		ffmpeg.Input(res.prefix+"_%d.dds", ffmpeg.KwArgs{
			"f":            "image2",
			"framerate":    strconv.FormatFloat(res.framerate, 'g', -1, 64),
			"start_number": strconv.Itoa(res.firstImage),
		}).Video(),
	}

	for _, name := range res.soundFiles {
		streams = append(streams, ffmpeg.Input(name).Audio())
	}

	return ffmpeg.Output(streams, output, ffmpeg.KwArgs{
		"c:v":    codec,
		"crf":    strconv.Itoa(cfg.crf),
		"preset": cfg.preset,
		"c:a":    "copy",
	}).GlobalArgs("-hide_banner").OverWriteOutput()
}
