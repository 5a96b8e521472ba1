// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package imaging fits camera snapshots into the messaging size budget.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/ManuGH/camgate/internal/config"
	xglog "github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/metrics"
)

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"

	qualityStep     = 10
	qualityFloor    = 40
	maxQualitySteps = 3
)

// Result is the optimized image. When Changed is false, Data is the input
// slice itself.
type Result struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
	Changed  bool
}

// Optimizer downsizes and recompresses JPEG and PNG snapshots.
type Optimizer struct {
	maxWidth  int
	maxHeight int
	maxBytes  int
	quality   int
	logger    zerolog.Logger
}

// New creates an Optimizer from the image budget.
func New(cfg config.ImageConfig) *Optimizer {
	return &Optimizer{
		maxWidth:  cfg.MaxWidth,
		maxHeight: cfg.MaxHeight,
		maxBytes:  cfg.MaxKB * 1024,
		quality:   cfg.Quality,
		logger:    xglog.WithComponent("imaging"),
	}
}

// Optimize never fails: on any error the original bytes come back unchanged.
func (o *Optimizer) Optimize(data []byte, mimeType string) Result {
	original := Result{Data: data, MimeType: mimeType}
	if mimeType != mimeJPEG && mimeType != mimePNG {
		metrics.IncImageOptimization("passthrough")
		return original
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return o.fail(original, err)
	}
	original.Width, original.Height = cfg.Width, cfg.Height

	if cfg.Width <= o.maxWidth && cfg.Height <= o.maxHeight && len(data) <= o.maxBytes {
		metrics.IncImageOptimization("unchanged")
		return original
	}

	src, err := decode(data, mimeType)
	if err != nil {
		return o.fail(original, err)
	}

	w, h := fit(cfg.Width, cfg.Height, o.maxWidth, o.maxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; transparent PNG pixels become white.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	quality := o.quality
	out, err := encodeJPEG(dst, quality)
	if err != nil {
		return o.fail(original, err)
	}
	for step := 0; len(out) > o.maxBytes && step < maxQualitySteps && quality > qualityFloor; step++ {
		quality = max(quality-qualityStep, qualityFloor)
		if out, err = encodeJPEG(dst, quality); err != nil {
			return o.fail(original, err)
		}
	}

	if mimeType == mimeJPEG && w == cfg.Width && h == cfg.Height && len(out) >= len(data) {
		metrics.IncImageOptimization("unchanged")
		return original
	}

	metrics.IncImageOptimization("resized")
	o.logger.Debug().
		Int(xglog.FieldWidth, w).
		Int(xglog.FieldHeight, h).
		Int(xglog.FieldBytes, len(out)).
		Int("original_bytes", len(data)).
		Int("quality", quality).
		Msg("snapshot optimized")
	return Result{Data: out, MimeType: mimeJPEG, Width: w, Height: h, Changed: true}
}

func (o *Optimizer) fail(original Result, err error) Result {
	metrics.IncImageOptimization("failed")
	o.logger.Warn().Err(err).Str(xglog.FieldMimeType, original.MimeType).Msg("image optimization failed, sending original")
	return original
}

func decode(data []byte, mimeType string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch mimeType {
	case mimePNG:
		return png.Decode(r)
	default:
		return jpeg.Decode(r)
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales w x h down to fit maxW x maxH, keeping aspect ratio. It never
// upscales and never returns a zero dimension.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(int(float64(w)*scale), 1)
	nh := max(int(float64(h)*scale), 1)
	return nw, nh
}
