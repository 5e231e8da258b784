package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/gen2brain/pff"
)

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(
			nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		)
		if err != nil {
			panic(err)
		}

		return enc
	},
}

func compressZstd(data []byte) []byte {
	enc := zstdEncPool.Get().(*zstd.Encoder)
	out := enc.EncodeAll(data, nil)
	zstdEncPool.Put(enc)

	return out
}

type extractConfig struct {
	outDir string
	zstd   bool
}

// extractResult describes one extracted document.
type extractResult struct {
	input  string
	prefix string

	frames       int
	firstImage   int // index of the first frame with an image, -1 if none
	images       int
	soundFiles   []string
	framerate    float64
	framerateErr error
}

func runExtract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	compress := fs.Bool("zstd", false, "write frames as zstd compressed .dds.zst files")
	jobs := fs.Int("j", runtime.NumCPU(), "number of inputs extracted in parallel")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: pff extract [-zstd] [-j N] <outdir> <file or url>...\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 2 {
		fs.Usage()

		return errUsage
	}

	cfg := extractConfig{outDir: fs.Arg(0), zstd: *compress}
	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		return err
	}

	inputs := fs.Args()[1:]
	if err := checkOutputNames(inputs); err != nil {
		return err
	}

	results := make([]*extractResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, *jobs))

	for i, input := range inputs {
		i, input := i, input // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			res, err := extract(ctx, cfg, input)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			results[i] = res

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		if res.framerateErr != nil {
			slog.Warn("cannot derive frame rate", "input", res.input, "error", res.framerateErr)

			continue
		}

		fmt.Printf("%s: FPS: %g\n", res.input, res.framerate)
	}

	return nil
}

// checkOutputNames rejects inputs that would write to the same output files.
func checkOutputNames(inputs []string) error {
	seen := make(map[string]string, len(inputs))

	for _, input := range inputs {
		name := baseName(input)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%s and %s both extract to %s_*", prev, input, name)
		}

		seen[name] = input
	}

	return nil
}

// extract writes every frame image of input as <prefix>_<index>.dds and every
// sound track as <prefix>_<language>_<track>.ogg.
func extract(ctx context.Context, cfg extractConfig, input string) (res *extractResult, err error) {
	log := slog.With("input", input)

	r, err := openInput(ctx, input)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	p, err := pff.New(r, pff.OptLogger(log))
	if err != nil {
		return nil, err
	}

	if p.VideoFormat() != pff.VideoDDS {
		return nil, fmt.Errorf("%w: document without video track", pff.ErrUnsupported)
	}

	res = &extractResult{
		input:      input,
		prefix:     filepath.Join(cfg.outDir, baseName(input)),
		firstImage: -1,
	}

	for i, track := range p.SoundTracks() {
		name := fmt.Sprintf("%s_%s_%d.ogg", res.prefix, track.Language, i)

		f, createErr := os.Create(name)
		if createErr != nil {
			return nil, createErr
		}

		w := bufio.NewWriter(f)
		defer func() {
			if flushErr := w.Flush(); flushErr != nil && err == nil {
				err = flushErr
			}
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		if setErr := p.SetSoundWriter(i, w); setErr != nil {
			return nil, setErr
		}

		res.soundFiles = append(res.soundFiles, name)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := p.Decode()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		res.frames++

		if frame.Video == nil {
			log.Warn("frame before the first image", "frame", frame.Index)

			continue
		}

		if res.firstImage < 0 {
			res.firstImage = frame.Index
		}

		if err := writeImage(cfg, res.prefix, frame); err != nil {
			return nil, err
		}

		res.images++
	}

	res.framerate, res.framerateErr = p.Framerate()

	log.Debug("extracted",
		"frames", res.frames,
		"images", res.images,
		"repeated", p.NumRepeated(),
		"tracks", len(res.soundFiles))

	return res, nil
}

func imageName(prefix string, index int, compressed bool) string {
	name := fmt.Sprintf("%s_%d.dds", prefix, index)
	if compressed {
		name += ".zst"
	}

	return name
}

func writeImage(cfg extractConfig, prefix string, frame *pff.Frame) error {
	data := frame.Video
	if cfg.zstd {
		data = compressZstd(data)
	}

	return os.WriteFile(imageName(prefix, frame.Index, cfg.zstd), data, 0o644)
}
