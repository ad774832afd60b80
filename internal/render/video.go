package render

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/icza/mjpeg"

	"epigrid/internal/sim"
)

// Video writes snapshots as frames of an MJPEG AVI file.
type Video struct {
	writer mjpeg.AviWriter
	canvas Canvas
	buf    bytes.Buffer
	opts   *jpeg.Options
	frames int
}

// NewVideo creates the AVI file at path.
func NewVideo(path string, canvas Canvas, fps int) (*Video, error) {
	if fps <= 0 {
		fps = 10
	}
	b := canvas.Bounds()
	w, err := mjpeg.New(path, int32(b.Dx()), int32(b.Dy()), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("create video %s: %w", path, err)
	}
	return &Video{
		writer: w,
		canvas: canvas,
		opts:   &jpeg.Options{Quality: 90},
	}, nil
}

// Add renders one snapshot and appends it as a frame.
func (v *Video) Add(snap sim.Snapshot) error {
	v.buf.Reset()
	if err := jpeg.Encode(&v.buf, v.canvas.Frame(snap), v.opts); err != nil {
		return fmt.Errorf("encode frame %d: %w", snap.Step, err)
	}
	if err := v.writer.AddFrame(v.buf.Bytes()); err != nil {
		return fmt.Errorf("add frame %d: %w", snap.Step, err)
	}
	v.frames++
	return nil
}

// Frames is the number of frames written so far.
func (v *Video) Frames() int { return v.frames }

// Close finalizes the AVI index.
func (v *Video) Close() error {
	return v.writer.Close()
}
