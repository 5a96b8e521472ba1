// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camgate/internal/config"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), uint8(x + y), 255})
		}
	}
	return img
}

func noise(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	_, _ = rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func encJPEG(t *testing.T, img image.Image, q int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}))
	return buf.Bytes()
}

func encPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newOptimizer(maxW, maxH, maxKB int) *Optimizer {
	return New(config.ImageConfig{MaxWidth: maxW, MaxHeight: maxH, MaxKB: maxKB, Quality: 85})
}

func TestOptimize_IdentityWithinBudget(t *testing.T) {
	data := encJPEG(t, gradient(320, 240), 80)
	res := newOptimizer(640, 480, 500).Optimize(data, "image/jpeg")

	assert.False(t, res.Changed)
	assert.Same(t, &data[0], &res.Data[0])
	assert.Equal(t, 320, res.Width)
	assert.Equal(t, 240, res.Height)
}

func TestOptimize_DownscalesPreservingAspect(t *testing.T) {
	data := encJPEG(t, gradient(1600, 900), 90)
	res := newOptimizer(800, 800, 500).Optimize(data, "image/jpeg")

	require.True(t, res.Changed)
	assert.Equal(t, "image/jpeg", res.MimeType)
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 450, res.Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 450, cfg.Height)
}

func TestOptimize_OversizedCameraFrame(t *testing.T) {
	data := encJPEG(t, gradient(3000, 2000), 95)
	res := New(config.ImageConfig{MaxWidth: 1920, MaxHeight: 1080, MaxKB: 500, Quality: 85}).Optimize(data, "image/jpeg")

	require.True(t, res.Changed)
	assert.Equal(t, 1620, res.Width)
	assert.Equal(t, 1080, res.Height)
	assert.LessOrEqual(t, len(res.Data), 500*1024)
	assert.NotEmpty(t, res.Data)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, cfg.Width, 1920)
	assert.LessOrEqual(t, cfg.Height, 1080)
}

func TestOptimize_PNGBecomesJPEGOnWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 400))
	// Fully transparent.
	data := encPNG(t, img)

	res := newOptimizer(200, 200, 500).Optimize(data, "image/png")
	require.True(t, res.Changed)
	assert.Equal(t, "image/jpeg", res.MimeType)

	out, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	r, g, b, _ := out.At(100, 100).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestOptimize_QualityStepdownIsBounded(t *testing.T) {
	data := encJPEG(t, noise(600, 600), 95)
	// 1 KB is unreachable for noise; the optimizer must still return.
	res := newOptimizer(600, 600, 1).Optimize(data, "image/jpeg")

	assert.Equal(t, 600, res.Width)
	assert.Equal(t, 600, res.Height)
	assert.Less(t, len(res.Data), len(data))
}

func TestOptimize_PassthroughOtherTypes(t *testing.T) {
	data := []byte("GIF89a....")
	res := newOptimizer(10, 10, 1).Optimize(data, "image/gif")
	assert.False(t, res.Changed)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, "image/gif", res.MimeType)
}

func TestOptimize_CorruptImageReturnsOriginal(t *testing.T) {
	data := []byte("\xff\xd8\xff\xe0garbage")
	res := newOptimizer(10, 10, 1).Optimize(data, "image/jpeg")
	assert.False(t, res.Changed)
	assert.Equal(t, data, res.Data)
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{1920, 1080, 1280, 720, 1280, 720},
		{1080, 1920, 1280, 720, 405, 720},
		{640, 480, 1920, 1080, 640, 480},
		{4000, 10, 100, 100, 100, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.maxW, tt.maxH)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}
