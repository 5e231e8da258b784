// Package pff implements a demuxer and video decoder for PFF cutscene files.
//
// A PFF document stores a header declaring an optional DDS video track and
// any number of Vorbis sound tracks, followed by frames. Each frame carries a
// timestamp, at most one video chunk and at most one chunk per sound track.
//
// Video chunks use a proprietary codec: an entropy coded stream of DXT1 block
// data, optionally zero-run encoded, split into two planes and coded as XOR
// difference to the previous frame. The DDS header is sent once, in the first
// video chunk, and is prepended to every decoded frame, so each Frame.Video is
// a complete .dds file. Frame.RGBA decodes it further into an image.RGBA
// through the image package, with the DDS format registered.
//
// Sound chunks are not decoded; they are passed through to a per-track
// io.Writer set with SetSoundWriter, or to the SoundFunc callback. The
// concatenated chunks of one track form an Ogg Vorbis stream.
//
// The high-level PFF type walks the document one frame at a time with Decode,
// or at once with DecodeAll. Frames without a video chunk repeat the last
// decoded image. A frame carrying neither video nor sound marks the logical
// end of the stream and must be the last one. Once decoding is done, Framerate
// derives the constant frame rate from the frame timestamps.
//
// There should be no need to use the lower level Demux and Video, unless you want to
// analyze a PFF document or extract its raw chunks without decoding them.
package pff

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"
)

// VideoFunc callback function.
type VideoFunc func(p *PFF, frame *Frame)

// SoundFunc callback function. It is called once per sound chunk, in frame order.
type SoundFunc func(p *PFF, track int, data []byte)

type state int

const (
	stateAwaitingMetadata state = iota
	stateStreaming
	stateEnded
)

func (s state) String() string {
	switch s {
	case stateAwaitingMetadata:
		return "awaiting metadata"
	case stateStreaming:
		return "streaming"
	case stateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Frame is one reconstructed frame of the document.
type Frame struct {
	Index int
	// Time is the frame timestamp in seconds.
	Time float64

	// Video is the complete DDS image shown by this frame: "DDS ", the header
	// and the DXT1 pixel data. It is nil until the first video chunk.
	// The slice is shared by repeated frames and must not be modified.
	Video []byte

	// Repeated is true when the frame carries no video chunk and repeats the previous image.
	Repeated bool

	// Sound has one slot per sound track; a nil slot means no data for that track.
	Sound [][]byte

	metadata *DDSMetadata
}

// Metadata returns the DDS metadata of the video stream, nil if Video is nil.
func (f *Frame) Metadata() *DDSMetadata {
	return f.metadata
}

// Width returns the image width in pixels.
func (f *Frame) Width() int {
	if f.metadata == nil {
		return 0
	}

	return int(f.metadata.Header.Width)
}

// Height returns the image height in pixels.
func (f *Frame) Height() int {
	if f.metadata == nil {
		return 0
	}

	return int(f.metadata.Header.Height)
}

// Pixels returns the DXT1 pixel data of Video, without the DDS prefix.
func (f *Frame) Pixels() []byte {
	if f.Video == nil {
		return nil
	}

	return f.Video[len(ddsMagic)+ddsHeaderSize:]
}

// RGBA decodes the frame image into image.RGBA.
func (f *Frame) RGBA() (*image.RGBA, error) {
	if f.Video == nil {
		return nil, fmt.Errorf("pff: frame %d has no image", f.Index)
	}

	return DecodeImage(f.Video)
}

// PFF is high-level interface implementation.
type PFF struct {
	log   *slog.Logger
	demux *Demux
	video *Video

	state state

	lastVideo  []byte
	timestamps []float64
	repeated   int

	soundWriters []io.Writer

	videoCallback VideoFunc
	soundCallback SoundFunc
}

// OptLogger sets the logger used for debug output. The default is slog.Default().
func OptLogger(log *slog.Logger) func(*PFF) {
	return func(p *PFF) {
		p.log = log
	}
}

// New creates a new PFF instance and reads the document header.
// It fails with ErrInvalidPFF or ErrUnsupported before any frame is decoded.
func New(r io.Reader, opts ...func(*PFF)) (*PFF, error) {
	p := &PFF{}
	for _, opt := range opts {
		opt(p)
	}

	if p.log == nil {
		p.log = slog.Default()
	}
	p.log = p.log.With("component", "pff")

	var err error
	p.demux, err = NewDemux(r)
	if err != nil {
		return nil, err
	}

	p.video = NewVideo()
	p.soundWriters = make([]io.Writer, p.demux.NumSoundTracks())

	p.log.Debug("header",
		"video", p.demux.VideoFormat(),
		"sound_tracks", p.demux.NumSoundTracks())

	return p, nil
}

// Demux returns the demuxer.
func (p *PFF) Demux() *Demux {
	return p.demux
}

// Video returns video decoder.
func (p *PFF) Video() *Video {
	return p.video
}

// VideoFormat returns the format of the video track.
func (p *PFF) VideoFormat() VideoFormat {
	return p.demux.VideoFormat()
}

// SoundTracks returns the sound tracks declared in the header.
func (p *PFF) SoundTracks() []SoundTrack {
	return p.demux.SoundTracks()
}

// NumSoundTracks returns the number of sound tracks.
func (p *PFF) NumSoundTracks() int {
	return p.demux.NumSoundTracks()
}

// SetSoundWriter sets the sink for the raw chunks of a sound track.
// Chunks are written in frame order, one Write per chunk. A nil w discards the track.
func (p *PFF) SetSoundWriter(track int, w io.Writer) error {
	if track < 0 || track >= len(p.soundWriters) {
		return fmt.Errorf("pff: sound track %d of %d", track, len(p.soundWriters))
	}

	p.soundWriters[track] = w

	return nil
}

// SetVideoCallback sets a video callback, called by DecodeAll for every frame.
func (p *PFF) SetVideoCallback(callback VideoFunc) {
	p.videoCallback = callback
}

// SetSoundCallback sets a sound callback, called by Decode for every sound chunk.
func (p *PFF) SetSoundCallback(callback SoundFunc) {
	p.soundCallback = callback
}

// Width returns the video width, 0 before the first video chunk was decoded.
func (p *PFF) Width() int {
	return p.video.Width()
}

// Height returns the video height, 0 before the first video chunk was decoded.
func (p *PFF) Height() int {
	return p.video.Height()
}

// HasEnded checks whether the end-of-stream frame has been decoded.
func (p *PFF) HasEnded() bool {
	return p.state == stateEnded
}

// NumFrames returns the number of frames decoded so far.
func (p *PFF) NumFrames() int {
	return len(p.timestamps)
}

// NumRepeated returns the number of decoded frames that repeated the previous image.
func (p *PFF) NumRepeated() int {
	return p.repeated
}

// Timestamps returns the timestamps of all frames decoded so far.
func (p *PFF) Timestamps() []float64 {
	return p.timestamps
}

// Time returns the timestamp of the last decoded frame.
func (p *PFF) Time() time.Duration {
	if len(p.timestamps) == 0 {
		return 0
	}

	return time.Duration(p.timestamps[len(p.timestamps)-1] * float64(time.Second))
}

// Framerate returns the frame rate derived from the timestamps decoded so far.
// It returns ErrNoFrameRate with fewer than two frames and ErrNonConstantFrameRate
// when the frames are not evenly spaced in time.
func (p *PFF) Framerate() (float64, error) {
	return Framerate(p.timestamps)
}

// Decode reads and reconstructs the next frame. It returns io.EOF after the
// end-of-document marker. Errors are fatal; decoding cannot continue after one.
func (p *PFF) Decode() (*Frame, error) {
	record, err := p.demux.Next()
	if err != nil {
		return nil, err
	}

	if p.state == stateEnded {
		return nil, newFormatError(record.Offset, record.Index, "frame",
			fmt.Errorf("%w: unexpected data after end-of-stream marker", ErrInvalidPFF))
	}

	frame := &Frame{
		Index: record.Index,
		Time:  record.Timestamp,
		Sound: make([][]byte, len(record.Sound)),
	}

	if record.Video != nil {
		img, err := p.video.Decode(record.Video, record.Index)
		if err != nil {
			return nil, err
		}

		if p.state == stateAwaitingMetadata {
			p.state = stateStreaming

			m := p.video.Metadata()
			p.log.Debug("dds metadata",
				"frame", record.Index,
				"width", m.Header.Width,
				"height", m.Header.Height,
				"fourcc", m.Header.FourCC(),
				"size", m.DecompressedSize)
		}

		p.lastVideo = img
	} else if p.lastVideo != nil {
		frame.Repeated = true
		p.repeated++

		p.log.Debug("repeating image", "frame", record.Index)
	}

	frame.Video = p.lastVideo
	frame.metadata = p.video.Metadata()

	for track, chunk := range record.Sound {
		if chunk == nil {
			continue
		}

		frame.Sound[track] = chunk.Data

		if w := p.soundWriters[track]; w != nil {
			if _, err := w.Write(chunk.Data); err != nil {
				return nil, fmt.Errorf("pff: frame %d: write sound track %d: %w", record.Index, track, err)
			}
		}

		if p.soundCallback != nil {
			p.soundCallback(p, track, chunk.Data)
		}
	}

	p.timestamps = append(p.timestamps, record.Timestamp)

	if !record.HasData() {
		p.log.Debug("end-of-stream marker", "frame", record.Index, "offset", record.Offset, "state", p.state)
		p.state = stateEnded
	}

	return frame, nil
}

// DecodeAll decodes all remaining frames, calling the video callback for each of them.
// It returns nil once the end-of-document marker is reached.
func (p *PFF) DecodeAll() error {
	for {
		frame, err := p.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Debug("end of document", "frames", p.NumFrames(), "repeated", p.repeated)

				return nil
			}

			return err
		}

		if p.videoCallback != nil {
			p.videoCallback(p, frame)
		}
	}
}
