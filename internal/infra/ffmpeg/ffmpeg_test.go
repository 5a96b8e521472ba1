// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package ffmpeg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camgate/internal/config"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)
	assert.Empty(t, r.LastN(5))

	r.Add("a")
	r.Add("")
	r.Add("b")
	assert.Equal(t, []string{"a", "b"}, r.LastN(5))

	r.Add("c")
	r.Add("d")
	assert.Equal(t, []string{"b", "c", "d"}, r.LastN(5))
	assert.Equal(t, []string{"d"}, r.LastN(1))
}

func TestOutputArgs(t *testing.T) {
	enc := EncodingFromProfile(config.Defaults().Video.Record)
	args := enc.OutputArgs()

	assert.Equal(t, []string{"-c:v", "libx264"}, args[:2])
	assert.Contains(t, args, "-crf")
	assert.Contains(t, args, "1500k")
	assert.Contains(t, args, ScaleFilter(1280, 720))
	assert.Equal(t, []string{"-movflags", "+faststart"}, args[len(args)-2:])

	enc.MaxWidth = 0
	assert.NotContains(t, enc.OutputArgs(), "-vf")
}

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720},
    {"codec_type": "audio", "codec_name": "aac"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "14.960000", "bit_rate": "812345"}
}`

func TestProbe(t *testing.T) {
	bin := fakeBin(t, "cat <<'JSON'\n"+probeJSON+"\nJSON")

	info, err := NewProber(bin).Probe(context.Background(), "/tmp/x.mp4")
	require.NoError(t, err)
	assert.Equal(t, MediaInfo{
		Duration:   14960 * time.Millisecond,
		Width:      1280,
		Height:     720,
		VideoCodec: "h264",
		AudioCodec: "aac",
		HasAudio:   true,
		BitRate:    812345,
		Format:     "mov",
	}, info)
}

func TestProbe_NonZeroExitWithValidJSON(t *testing.T) {
	bin := fakeBin(t, "cat <<'JSON'\n"+probeJSON+"\nJSON\necho 'partial file' >&2\nexit 1")

	info, err := NewProber(bin).Probe(context.Background(), "/tmp/x.mp4")
	require.NoError(t, err)
	assert.Equal(t, "h264", info.VideoCodec)
}

func TestProbe_Failure(t *testing.T) {
	bin := fakeBin(t, "echo 'No such file or directory' >&2\nexit 1")

	_, err := NewProber(bin).Probe(context.Background(), "/tmp/missing.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProbe)
	assert.Contains(t, err.Error(), "No such file")
}

func TestProbe_NoStreams(t *testing.T) {
	bin := fakeBin(t, `echo '{"streams":[],"format":{"format_name":"mp4"}}'`)

	_, err := NewProber(bin).Probe(context.Background(), "/tmp/empty.mp4")
	assert.ErrorIs(t, err, ErrProbe)
}

func TestCheckBinary(t *testing.T) {
	bin := fakeBin(t, `echo "ffmpeg version 6.1.1 Copyright (c) 2000-2023"
echo "built with gcc"`)

	line, err := CheckBinary(context.Background(), bin)
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg version 6.1.1 Copyright (c) 2000-2023", line)

	_, err = CheckBinary(context.Background(), "definitely-not-a-binary-xyz")
	assert.ErrorIs(t, err, ErrSpawn)
}
