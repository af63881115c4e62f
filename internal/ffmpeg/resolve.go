package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
)

// Environment variable for a custom ffmpeg path.
const envFFmpegPath = "FFMPEG_PATH"

// Resolve locates the FFmpeg binary. Precedence:
//  1. FFMPEG_PATH environment variable (must point at an existing file)
//  2. ffmpeg on PATH
//
// Returns ErrNotFound with installation guidance if neither resolves.
func Resolve() (string, error) {
	if custom := os.Getenv(envFFmpegPath); custom != "" {
		if _, err := os.Stat(custom); err != nil {
			return "", fmt.Errorf("%w: %s=%q does not exist", ErrNotFound, envFFmpegPath, custom)
		}
		return custom, nil
	}

	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%w: install ffmpeg or set %s", ErrNotFound, envFFmpegPath)
	}
	return path, nil
}
