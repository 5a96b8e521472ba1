// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/camgate/internal/config"
	xglog "github.com/ManuGH/camgate/internal/log"
)

// ErrProbe means ffprobe could not describe the file.
var ErrProbe = errors.New("media probe failed")

const maxProbeStderr = 4096

// MediaInfo is the subset of ffprobe output the pipeline relies on.
type MediaInfo struct {
	Duration   time.Duration
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
	HasAudio   bool
	BitRate    int64
	Format     string
}

// Prober runs ffprobe.
type Prober struct {
	Bin string
}

// NewProber creates a Prober for the given ffprobe binary.
func NewProber(bin string) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{Bin: bin}
}

// Probe describes the media file at path.
func (p *Prober) Probe(ctx context.Context, path string) (MediaInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	cmd := exec.CommandContext(ctx, p.Bin, args...) // #nosec G204 -- args are fixed, path is opaque
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, runErr := cmd.Output()

	var data probeData
	jsonErr := json.Unmarshal(out, &data)
	if jsonErr != nil || data.Format.FormatName == "" || !data.hasStream() {
		errStr := config.MaskURLsInText(truncate(stderr.String()))
		switch {
		case runErr != nil:
			return MediaInfo{}, fmt.Errorf("%w: %w (stderr: %s)", ErrProbe, runErr, errStr)
		case jsonErr != nil:
			return MediaInfo{}, fmt.Errorf("%w: json decode: %w", ErrProbe, jsonErr)
		default:
			return MediaInfo{}, fmt.Errorf("%w: no video or audio stream", ErrProbe)
		}
	}
	if runErr != nil {
		// Partial files can exit non-zero and still produce usable JSON.
		xglog.L().Warn().Err(runErr).
			Str(xglog.FieldPath, path).
			Str("stderr", truncate(stderr.String())).
			Msg("ffprobe non-zero exit but JSON accepted")
	}

	info := MediaInfo{Format: data.Format.FormatName}
	if i := strings.IndexByte(info.Format, ','); i > 0 {
		info.Format = info.Format[:i]
	}
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			if !info.HasAudio {
				info.AudioCodec = s.CodecName
				info.HasAudio = true
			}
		}
	}
	if secs, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil && secs > 0 {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	if br, err := strconv.ParseInt(data.Format.BitRate, 10, 64); err == nil {
		info.BitRate = br
	}
	return info, nil
}

func truncate(s string) string {
	if len(s) > maxProbeStderr {
		return s[:maxProbeStderr] + "..."
	}
	return s
}

type probeData struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

func (d probeData) hasStream() bool {
	for _, s := range d.Streams {
		if (s.CodecType == "video" || s.CodecType == "audio") && s.CodecName != "" {
			return true
		}
	}
	return false
}
