package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/gen2brain/pff"
)

// Report describes one document.
type Report struct {
	Input  string `json:"input"`
	Video  string `json:"video"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	FourCC string `json:"fourcc,omitempty"`

	Tracks []TrackReport `json:"tracks"`

	Frames      int     `json:"frames"`
	VideoChunks int     `json:"videoChunks"`
	EndMarker   bool    `json:"endMarker"`
	Duration    float64 `json:"duration"`

	Framerate      float64 `json:"framerate,omitempty"`
	FramerateError string  `json:"framerateError,omitempty"`
}

// TrackReport describes one sound track.
type TrackReport struct {
	Format   string `json:"format"`
	Language string `json:"language"`
	Chunks   int    `json:"chunks"`
	Size     int64  `json:"size"`
}

func runInfo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	jobs := fs.Int("j", runtime.NumCPU(), "number of inputs read in parallel")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: pff info [-json] [-j N] <file or url>...\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()

		return errUsage
	}

	reports := make([]*Report, fs.NArg())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, *jobs))

	for i, input := range fs.Args() {
		i, input := i, input // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			r, err := openInput(ctx, input)
			if err != nil {
				return err
			}
			defer r.Close()

			reports[i], err = newReport(input, r)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(os.Stdout, reports)
	}

	for _, report := range reports {
		writeText(os.Stdout, report)
	}

	return nil
}

// newReport walks the frame records without decoding video, except for the
// first chunk carrying the DDS metadata.
func newReport(input string, r io.Reader) (*Report, error) {
	demux, err := pff.NewDemux(r)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Input: input,
		Video: demux.VideoFormat().String(),
	}

	for _, track := range demux.SoundTracks() {
		report.Tracks = append(report.Tracks, TrackReport{
			Format:   track.Format.String(),
			Language: track.Language,
		})
	}

	video := pff.NewVideo()

	var timestamps []float64
	for {
		record, err := demux.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		if report.EndMarker {
			return nil, fmt.Errorf("%w: frame %d after end-of-stream marker", pff.ErrInvalidPFF, record.Index)
		}

		report.Frames++
		timestamps = append(timestamps, record.Timestamp)

		if record.Video != nil {
			report.VideoChunks++

			if !video.HasHeader() {
				if _, err := video.Decode(record.Video, record.Index); err != nil {
					return nil, err
				}

				m := video.Metadata()
				report.Width = int(m.Header.Width)
				report.Height = int(m.Header.Height)
				report.FourCC = m.Header.FourCC()
			}
		}

		for i, chunk := range record.Sound {
			if chunk != nil {
				report.Tracks[i].Chunks++
				report.Tracks[i].Size += int64(len(chunk.Data))
			}
		}

		report.EndMarker = !record.HasData()
	}

	if len(timestamps) > 0 {
		report.Duration = timestamps[len(timestamps)-1] - timestamps[0]
	}

	report.Framerate, err = pff.Framerate(timestamps)
	if err != nil {
		report.FramerateError = err.Error()
	}

	return report, nil
}

func writeJSON(w io.Writer, reports []*Report) error {
	data, err := sonic.ConfigStd.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", data)

	return err
}

func writeText(w io.Writer, r *Report) {
	fmt.Fprintf(w, "%s:\n", r.Input)
	fmt.Fprintf(w, "  video:     %s", r.Video)
	if r.FourCC != "" {
		fmt.Fprintf(w, " %dx%d %s", r.Width, r.Height, r.FourCC)
	}
	fmt.Fprintln(w)

	for i, track := range r.Tracks {
		fmt.Fprintf(w, "  sound %d:   %s %s, %d chunks, %d bytes\n", i, track.Format, track.Language, track.Chunks, track.Size)
	}

	fmt.Fprintf(w, "  frames:    %d (%d video chunks)\n", r.Frames, r.VideoChunks)
	fmt.Fprintf(w, "  duration:  %.3fs\n", r.Duration)

	if r.FramerateError != "" {
		fmt.Fprintf(w, "  framerate: %s\n", r.FramerateError)
	} else {
		fmt.Fprintf(w, "  framerate: %g\n", r.Framerate)
	}
}
