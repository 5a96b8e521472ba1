// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CheckBinary runs "<bin> -version" and returns the first line of output.
func CheckBinary(ctx context.Context, bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", &Error{Kind: ErrSpawn, Err: err}
	}
	out, err := exec.CommandContext(ctx, path, "-version").Output() // #nosec G204
	if err != nil {
		return "", &Error{Kind: ErrSpawn, Err: fmt.Errorf("%s -version: %w", bin, err)}
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	if sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	return "", &Error{Kind: ErrSpawn, Err: fmt.Errorf("%s -version: empty output", bin)}
}
