// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"fmt"
	"strconv"

	"github.com/ManuGH/camgate/internal/config"
)

// Encoding is a resolved set of H.264/AAC output parameters.
type Encoding struct {
	Codec         string
	Preset        string
	Profile       string
	Level         string
	PixFmt        string
	CRF           int
	MaxBitrateK   int
	BufSizeK      int
	GOP           int
	MaxWidth      int
	MaxHeight     int
	AudioBitrateK int
}

// EncodingFromProfile copies a configured profile.
func EncodingFromProfile(p config.TranscodeProfile) Encoding {
	return Encoding{
		Codec:         p.Codec,
		Preset:        p.Preset,
		Profile:       p.Profile,
		Level:         p.Level,
		PixFmt:        p.PixFmt,
		CRF:           p.CRF,
		MaxBitrateK:   p.MaxBitrateK,
		BufSizeK:      p.BufSizeK,
		GOP:           p.GOP,
		MaxWidth:      p.MaxWidth,
		MaxHeight:     p.MaxHeight,
		AudioBitrateK: p.AudioBitrate,
	}
}

// ScaleFilter caps the frame at w x h, keeps aspect ratio and never upscales.
// Dimensions are rounded down to even values as yuv420p requires.
func ScaleFilter(w, h int) string {
	return fmt.Sprintf(
		"scale='min(iw,%d)':'min(ih,%d)':force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2",
		w, h)
}

// OutputArgs returns the codec, rate control and container flags for an
// MP4 output, ending before the output path.
func (e Encoding) OutputArgs() []string {
	args := []string{
		"-c:v", e.Codec,
		"-preset", e.Preset,
		"-profile:v", e.Profile,
		"-level", e.Level,
		"-pix_fmt", e.PixFmt,
		"-crf", strconv.Itoa(e.CRF),
		"-maxrate", strconv.Itoa(e.MaxBitrateK) + "k",
		"-bufsize", strconv.Itoa(e.BufSizeK) + "k",
		"-g", strconv.Itoa(e.GOP),
		"-keyint_min", strconv.Itoa(e.GOP),
		"-sc_threshold", "0",
	}
	if e.MaxWidth > 0 && e.MaxHeight > 0 {
		args = append(args, "-vf", ScaleFilter(e.MaxWidth, e.MaxHeight))
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", strconv.Itoa(e.AudioBitrateK)+"k",
		"-movflags", "+faststart",
	)
	return args
}

// ProgressArgs makes ffmpeg write machine-readable progress to stdout.
func ProgressArgs() []string {
	return []string{"-progress", "pipe:1", "-nostats"}
}
