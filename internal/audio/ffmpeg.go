//go:build !linux

package audio

import "fmt"

// buildFFmpegCaptureArgs constructs FFmpeg arguments for raw mono capture.
func buildFFmpegCaptureArgs(inputFormat, device string) []string {
	return []string{
		"-f", inputFormat,
		"-i", device,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-vn",
		"-f", "s16le",
		"-ac", fmt.Sprintf("%d", captureChannels),
		"-ar", fmt.Sprintf("%d", captureSampleRate),
		"pipe:1",
	}
}
