package pff

import (
	"errors"
	"fmt"
	"io"
)

// Structural markers. Every marker is stored as a NUL-terminated ASCII string.
const (
	markerMagic     = "PFF0.0"
	markerEndHeader = "ENDHEADER"
	markerFrame     = "FRAME"
	markerVideo     = "VIDEO"
	markerSound     = "SOUND"
	markerEndFrame  = "ENDFRAME"
	markerEndFile   = "ENDFILE"

	prefixVideoFormat = "VIDEO_"
	prefixSoundFormat = "SOUND_"

	formatVideoDDS    = "VIDEO_DDS"
	formatSoundVorbis = "SOUND_VORBIS"
)

// VideoFormat identifies the codec of the video track.
type VideoFormat int

// Video formats.
const (
	VideoNone VideoFormat = iota
	VideoDDS
)

func (f VideoFormat) String() string {
	switch f {
	case VideoDDS:
		return formatVideoDDS
	default:
		return "none"
	}
}

// SoundFormat identifies the codec of a sound track.
type SoundFormat int

// Sound formats.
const (
	SoundVorbis SoundFormat = iota
)

func (f SoundFormat) String() string {
	switch f {
	case SoundVorbis:
		return formatSoundVorbis
	default:
		return fmt.Sprintf("SoundFormat(%d)", int(f))
	}
}

// SoundTrack describes one sound track declared in the document header.
type SoundTrack struct {
	Format   SoundFormat
	Language string
}

// Chunk is a raw payload stored in a frame block.
// Offset is the absolute offset of the payload's first byte.
type Chunk struct {
	Offset int64
	Data   []byte
}

// FrameRecord is one frame block as stored in the document.
// Sound has one slot per sound track; a nil slot means the frame carries no data for that track.
type FrameRecord struct {
	Index     int
	Offset    int64
	Size      uint32 // declared size, informational only
	Timestamp float64
	Video     *Chunk
	Sound     []*Chunk
}

// HasData reports whether the frame carries a video chunk or at least one sound chunk.
func (r *FrameRecord) HasData() bool {
	if r.Video != nil {
		return true
	}

	for _, s := range r.Sound {
		if s != nil {
			return true
		}
	}

	return false
}

// Demux parses a PFF document. The header is read by NewDemux, frame blocks
// are read one at a time by Next, so the whole document never has to be in memory.
type Demux struct {
	buf *Buffer

	videoFormat VideoFormat
	soundTracks []SoundTrack

	framesRead int
	hasEnded   bool
}

// NewDemux creates a demuxer reading from r and parses the document header.
// Unknown video or sound formats are reported as ErrUnsupported before any frame is read.
func NewDemux(r io.Reader) (*Demux, error) {
	d := &Demux{}
	d.buf = NewBuffer(r)

	if err := d.decodeHeader(); err != nil {
		return nil, err
	}

	return d, nil
}

// VideoFormat returns the format of the video track, VideoNone if the document has none.
func (d *Demux) VideoFormat() VideoFormat {
	return d.videoFormat
}

// SoundTracks returns the sound tracks declared in the header.
func (d *Demux) SoundTracks() []SoundTrack {
	return d.soundTracks
}

// NumSoundTracks returns the number of sound tracks declared in the header.
func (d *Demux) NumSoundTracks() int {
	return len(d.soundTracks)
}

// HasEnded checks whether the end-of-document marker was reached.
func (d *Demux) HasEnded() bool {
	return d.hasEnded
}

// Offset returns the absolute offset of the next unread byte.
func (d *Demux) Offset() int64 {
	return d.buf.Offset()
}

// Next reads and returns the next frame block. It returns io.EOF once the
// end-of-document marker has been consumed. The sequence cannot be restarted.
func (d *Demux) Next() (*FrameRecord, error) {
	if d.hasEnded {
		return nil, io.EOF
	}

	index := d.framesRead

	if !d.buf.hasMarker(markerFrame) {
		offset := d.buf.Offset()
		if err := d.buf.expectMarker(markerEndFile); err != nil {
			return nil, newFormatError(offset, index, "frame marker", err)
		}

		d.hasEnded = true

		return nil, io.EOF
	}

	record, err := d.decodeFrame(index)
	if err != nil {
		return nil, err
	}

	d.framesRead++

	return record, nil
}

func (d *Demux) decodeHeader() error {
	offset := d.buf.Offset()
	if err := d.buf.expectMarker(markerMagic); err != nil {
		return newFormatError(offset, -1, "magic", err)
	}

	if d.buf.hasPrefix(prefixVideoFormat) {
		offset = d.buf.Offset()
		format, err := d.buf.readCString()
		if err != nil {
			return newFormatError(offset, -1, "video format", err)
		}

		if format != formatVideoDDS {
			return newFormatError(offset, -1, "video format", fmt.Errorf("%w: video format %q", ErrUnsupported, format))
		}

		d.videoFormat = VideoDDS
	}

	for d.buf.hasPrefix(prefixSoundFormat) {
		offset = d.buf.Offset()
		format, err := d.buf.readCString()
		if err != nil {
			return newFormatError(offset, -1, "sound format", err)
		}

		if format != formatSoundVorbis {
			return newFormatError(offset, -1, "sound format", fmt.Errorf("%w: sound format %q", ErrUnsupported, format))
		}

		offset = d.buf.Offset()
		language, err := d.buf.readCString()
		if err != nil {
			return newFormatError(offset, -1, "sound language", err)
		}

		d.soundTracks = append(d.soundTracks, SoundTrack{
			Format:   SoundVorbis,
			Language: language,
		})
	}

	offset = d.buf.Offset()
	if err := d.buf.expectMarker(markerEndHeader); err != nil {
		return newFormatError(offset, -1, "end of header", err)
	}

	return nil
}

func (d *Demux) decodeFrame(index int) (*FrameRecord, error) {
	record := &FrameRecord{
		Index:  index,
		Offset: d.buf.Offset(),
		Sound:  make([]*Chunk, len(d.soundTracks)),
	}

	fail := func(field string, err error) error {
		return newFormatError(d.buf.Offset(), index, field, err)
	}

	if err := d.buf.expectMarker(markerFrame); err != nil {
		return nil, fail("frame marker", err)
	}

	var err error
	if record.Size, err = d.buf.readUint32(); err != nil {
		return nil, fail("frame size", err)
	}

	if record.Timestamp, err = d.buf.readFloat64(); err != nil {
		return nil, fail("timestamp", err)
	}

	if d.buf.hasMarker(markerVideo) {
		if d.videoFormat == VideoNone {
			return nil, fail("video", errors.New("video chunk in a document without video track"))
		}

		d.buf.index += len(markerVideo) + 1

		size, err := d.buf.readUint32()
		if err != nil {
			return nil, fail("video size", err)
		}

		chunk := &Chunk{Offset: d.buf.Offset()}
		if chunk.Data, err = d.buf.readBytes(int(size)); err != nil {
			return nil, fail("video data", err)
		}

		record.Video = chunk
	}

	for d.buf.hasMarker(markerSound) {
		d.buf.index += len(markerSound) + 1

		size, err := d.buf.readUint32()
		if err != nil {
			return nil, fail("sound size", err)
		}

		if size == 0 {
			return nil, fail("sound size", errors.New("sound chunk without track index"))
		}

		offset := d.buf.Offset()
		track, err := d.buf.readUint8()
		if err != nil {
			return nil, fail("sound track", err)
		}

		if int(track) >= len(d.soundTracks) {
			return nil, newFormatError(offset, index, "sound track", fmt.Errorf("track %d of %d", track, len(d.soundTracks)))
		}

		if record.Sound[track] != nil {
			return nil, newFormatError(offset, index, "sound track", fmt.Errorf("duplicate chunk for track %d", track))
		}

		chunk := &Chunk{Offset: d.buf.Offset()}
		if chunk.Data, err = d.buf.readBytes(int(size) - 1); err != nil {
			return nil, fail("sound data", err)
		}

		record.Sound[track] = chunk
	}

	if err := d.buf.expectMarker(markerEndFrame); err != nil {
		return nil, fail("end of frame", err)
	}

	return record, nil
}
