// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"strconv"
	"strings"

	"github.com/ManuGH/camgate/internal/infra/ffmpeg"
)

// BuildArgs returns the ffmpeg arguments that capture seconds of rtspURL
// into out. Non-RTSP inputs such as local files skip the transport flag.
func BuildArgs(rtspURL string, seconds int, enc ffmpeg.Encoding, out string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
	}
	if isRTSP(rtspURL) {
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args,
		"-i", rtspURL,
		"-t", strconv.Itoa(seconds),
	)
	args = append(args, enc.OutputArgs()...)
	args = append(args, ffmpeg.ProgressArgs()...)
	return append(args, out)
}

func isRTSP(u string) bool {
	scheme, _, ok := strings.Cut(u, "://")
	return ok && (strings.EqualFold(scheme, "rtsp") || strings.EqualFold(scheme, "rtsps"))
}
