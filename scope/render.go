// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scope

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/gpio"
)

// RenderOpts contains options to pass to Render.
type RenderOpts struct {
	// Resolution is the time represented by one pixel.
	Resolution time.Duration
	// RowHeight is the height of one waveform in pixels.
	RowHeight int
	// MaxWidth clips long waveforms. 0 means no limit.
	MaxWidth int
	// FontSize of the labels, in points.
	FontSize float64
}

// DefaultRenderOpts is the recommended default options.
var DefaultRenderOpts = RenderOpts{
	Resolution: time.Microsecond,
	RowHeight:  48,
	MaxWidth:   4096,
	FontSize:   11,
}

const labelWidth = 150

// Render draws one row per transmitted train and received capture.
func Render(events []Event, opts *RenderOpts) (image.Image, error) {
	dc, err := draw(events, opts)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// WritePNG renders events as a PNG image.
func WritePNG(w io.Writer, events []Event, opts *RenderOpts) error {
	dc, err := draw(events, opts)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

func draw(events []Event, opts *RenderOpts) (*gg.Context, error) {
	if opts == nil {
		opts = &DefaultRenderOpts
	}
	if opts.Resolution <= 0 || opts.RowHeight < 16 {
		return nil, errors.New("scope: invalid render options")
	}
	var rows []*Event
	var longest time.Duration
	for i := range events {
		if len(events[i].Symbols) == 0 {
			continue
		}
		rows = append(rows, &events[i])
		if d := events[i].Duration(); d > longest {
			longest = d
		}
	}
	if len(rows) == 0 {
		return nil, errors.New("scope: no waveform to render")
	}
	w := labelWidth + int(longest/opts.Resolution) + 8
	if opts.MaxWidth > 0 && w > opts.MaxWidth {
		w = opts.MaxWidth
	}
	face, err := labelFace(opts.FontSize)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(w, len(rows)*opts.RowHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(face)
	dc.SetLineWidth(1.5)
	for i, e := range rows {
		y0 := float64(i * opts.RowHeight)
		hi := y0 + 8
		lo := y0 + float64(opts.RowHeight) - 8

		dc.SetRGB(0.85, 0.85, 0.85)
		dc.DrawLine(0, y0+float64(opts.RowHeight)-0.5, float64(w), y0+float64(opts.RowHeight)-0.5)
		dc.Stroke()

		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(fmt.Sprintf("%s %s", e.Kind, e.At.Round(time.Microsecond)), 6, (hi+lo)/2, 0, 0.5)

		if e.Kind == Transmit {
			dc.SetRGB(0.1, 0.3, 0.8)
		} else {
			dc.SetRGB(0.1, 0.6, 0.2)
		}
		x := float64(labelWidth)
		y := hi
		dc.MoveTo(x, y)
		for _, s := range e.Symbols {
			for _, seg := range [2]struct {
				l gpio.Level
				d time.Duration
			}{{s.Level0, s.Duration0}, {s.Level1, s.Duration1}} {
				if seg.d == 0 {
					continue
				}
				y = lo
				if seg.l == gpio.High {
					y = hi
				}
				dc.LineTo(x, y)
				x += float64(seg.d) / float64(opts.Resolution)
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}
	return dc, nil
}

var (
	fontOnce sync.Once
	fontErr  error
	goFont   *truetype.Font
)

func labelFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		goFont, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	if size <= 0 {
		size = DefaultRenderOpts.FontSize
	}
	return truetype.NewFace(goFont, &truetype.Options{Size: size}), nil
}
