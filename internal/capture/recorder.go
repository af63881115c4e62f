package capture

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-capture/internal/ffmpeg"
)

// Compile-time interface implementation checks.
var (
	_ SegmentRecorder = (*FFmpegRecorder)(nil)
	_ DeviceLister    = (*FFmpegRecorder)(nil)
)

// SegmentRecorder records one fixed-duration segment of live audio to a file.
// Canceling the context requests an early finish: the recorder must still
// finalize the output so the partial segment remains a valid container.
type SegmentRecorder interface {
	RecordSegment(ctx context.Context, duration time.Duration, output string) error
}

// DeviceLister lists available audio input devices.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]string, error)
}

// gracefulStopTimeout is the time to wait for FFmpeg to finalize a segment
// file after an early-stop request before killing the process.
const gracefulStopTimeout = 5 * time.Second

// ffmpegRunner runs FFmpeg commands. Injectable for tests.
type ffmpegRunner interface {
	RunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error)
	RunGraceful(ctx context.Context, ffmpegPath string, args []string, gracefulTimeout time.Duration) error
}

// defaultFFmpegRunner delegates to the ffmpeg package.
type defaultFFmpegRunner struct{}

func (defaultFFmpegRunner) RunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error) {
	return ffmpeg.RunOutput(ctx, ffmpegPath, args)
}

func (defaultFFmpegRunner) RunGraceful(ctx context.Context, ffmpegPath string, args []string, gracefulTimeout time.Duration) error {
	return ffmpeg.RunGraceful(ctx, ffmpegPath, args, gracefulTimeout)
}

// pactlRunner runs pactl for PulseAudio device discovery on Linux.
type pactlRunner interface {
	ListSources(ctx context.Context) (string, error)
}

type defaultPactlRunner struct{}

func (defaultPactlRunner) ListSources(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "pactl", "list", "sources", "short")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// FFmpegRecorder captures microphone audio using FFmpeg.
// It supports macOS (avfoundation), Linux (alsa/pulse), and Windows (dshow).
//
// The input device is resolved once at construction and reused for every
// segment of the session; only the FFmpeg process is recreated per segment.
type FFmpegRecorder struct {
	ffmpegPath string
	device     string

	runner ffmpegRunner
	pactl  pactlRunner
}

// RecorderOption configures an FFmpegRecorder.
type RecorderOption func(*FFmpegRecorder)

// WithFFmpegRunner sets the FFmpeg command runner.
func WithFFmpegRunner(r ffmpegRunner) RecorderOption {
	return func(rec *FFmpegRecorder) {
		rec.runner = r
	}
}

// WithPactlRunner sets the pactl command runner.
func WithPactlRunner(r pactlRunner) RecorderOption {
	return func(rec *FFmpegRecorder) {
		rec.pactl = r
	}
}

// NewFFmpegRecorder creates a recorder bound to an input device.
// ffmpegPath must be a valid path to the FFmpeg binary.
// device can be empty for auto-detection, or a specific device name:
//   - macOS: ":0" or ":DeviceName"
//   - Linux: "default", "hw:0", or a PulseAudio source name
//   - Windows: "Microphone (Realtek High Definition Audio)"
//
// Returns ErrCaptureUnavailable if no usable device can be resolved.
func NewFFmpegRecorder(ctx context.Context, ffmpegPath, device string, opts ...RecorderOption) (*FFmpegRecorder, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty: %w", ffmpeg.ErrNotFound)
	}
	rec := &FFmpegRecorder{
		ffmpegPath: ffmpegPath,
		device:     device,
		runner:     defaultFFmpegRunner{},
		pactl:      defaultPactlRunner{},
	}
	for _, opt := range opts {
		opt(rec)
	}

	if rec.device == "" {
		detected, err := rec.detectDefaultDevice(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}
		rec.device = detected
	}

	return rec, nil
}

// Device returns the resolved input device.
func (r *FFmpegRecorder) Device() string {
	return r.device
}

// RecordSegment records a single segment of the given duration to output.
// The output is WebM/Opus at 16kHz mono ~50kbps (optimized for voice).
// Canceling ctx asks FFmpeg to finish early and finalize the file, so a
// stopped segment still yields a playable partial chunk.
func (r *FFmpegRecorder) RecordSegment(ctx context.Context, duration time.Duration, output string) error {
	args := buildSegmentArgs(inputFormat(), formatInputArg(inputFormat(), r.device), duration, output)
	return r.runner.RunGraceful(ctx, r.ffmpegPath, args, gracefulStopTimeout)
}

// buildSegmentArgs constructs FFmpeg arguments for one segment recording.
func buildSegmentArgs(inputFormat, inputArg string, duration time.Duration, output string) []string {
	args := []string{
		"-y",              // Overwrite output without asking.
		"-f", inputFormat, // Input format.
		"-i", inputArg, // Input source.
		"-t", strconv.Itoa(int(duration.Seconds())), // Segment duration in seconds.
	}
	args = append(args, encodingArgs()...)
	args = append(args, output)
	return args
}

// encodingArgs returns the encoding arguments for WebM/Opus output.
// Single source of truth for output encoding parameters.
func encodingArgs() []string {
	return []string{
		"-c:a", "libopus", // Opus codec in a WebM container.
		"-ar", "16000", // 16kHz sample rate.
		"-ac", "1", // Mono.
		"-b:a", "50k", // 50kbps bitrate.
		"-f", "webm", // Container, independent of output extension.
	}
}

// ListDevices returns available audio input devices for display.
// Real microphones are listed before virtual/monitor devices.
func (r *FFmpegRecorder) ListDevices(ctx context.Context) ([]string, error) {
	format := inputFormat()

	// On Linux, prefer PulseAudio for device discovery.
	if runtime.GOOS == "linux" {
		if output, err := r.pactl.ListSources(ctx); err == nil {
			if devices := parsePulseDevices(output); len(devices) > 0 {
				return devices, nil
			}
		}
	}

	stderr, err := r.runner.RunOutput(ctx, r.ffmpegPath, listDevicesArgs(format))
	// FFmpeg -list_devices always exits non-zero (no actual input to
	// process), but stderr contains the device list. Only treat as error
	// if stderr is empty.
	if err != nil && stderr == "" {
		return nil, err
	}

	return parseDevices(format, stderr), nil
}

// detectDefaultDevice auto-detects the default audio input device.
func (r *FFmpegRecorder) detectDefaultDevice(ctx context.Context) (string, error) {
	devices, err := r.ListDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: run 'ffmpeg -f %s -list_devices true -i dummy' to see available devices, use --device to specify one",
			ErrNoAudioDevice, inputFormat())
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("%w: check that a microphone is connected and enabled", ErrNoAudioDevice)
	}
	return devices[0], nil
}

// inputFormat returns the FFmpeg input format for the current OS.
func inputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "alsa"
	}
}

// listDevicesArgs returns FFmpeg arguments to list audio devices.
func listDevicesArgs(format string) []string {
	switch format {
	case "avfoundation":
		return []string{"-f", "avfoundation", "-list_devices", "true", "-i", ""}
	case "dshow":
		return []string{"-f", "dshow", "-list_devices", "true", "-i", "dummy"}
	default:
		// FFmpeg has no device listing for ALSA; trigger a probe so common
		// defaults can be returned by the parser.
		return []string{"-f", "alsa", "-i", "default", "-t", "0", "-f", "null", "-"}
	}
}

// formatInputArg formats the device name for the FFmpeg -i argument.
func formatInputArg(format, device string) string {
	switch format {
	case "avfoundation":
		// macOS: audio-only input uses ":deviceindex" or ":devicename".
		if strings.HasPrefix(device, ":") {
			return device
		}
		return ":" + device
	case "dshow":
		// Windows: format is "audio=DeviceName".
		if strings.HasPrefix(device, "audio=") {
			return device
		}
		return "audio=" + device
	default:
		return device
	}
}

// parseDevices extracts device names from FFmpeg -list_devices output.
func parseDevices(format, stderr string) []string {
	switch format {
	case "avfoundation":
		return parseAVFoundationDevices(stderr)
	case "dshow":
		return parseDShowDevices(stderr)
	default:
		return parseALSADevices(stderr)
	}
}

// virtualAudioDevices are known virtual/loopback devices that should not be
// picked as the default microphone.
var virtualAudioDevices = []string{
	// macOS
	"ZoomAudioDevice",
	"Microsoft Teams Audio",
	"BlackHole",
	"Soundflower",
	"Loopback Audio",
	// Windows
	"Stereo Mix",
	"Wave Out Mix",
	"What U Hear",
	"CABLE Output",
	"VB-Audio Virtual Cable",
	"virtual-audio-capturer",
	"VoiceMeeter",
	// Linux (PulseAudio/PipeWire monitor sources)
	".monitor",
}

// isVirtualAudioDevice checks if a device name matches a known virtual device.
func isVirtualAudioDevice(name string) bool {
	nameLower := strings.ToLower(name)
	for _, virtual := range virtualAudioDevices {
		if strings.Contains(nameLower, strings.ToLower(virtual)) {
			return true
		}
	}
	return false
}

// isMicrophoneDevice checks if a device name looks like a real microphone.
func isMicrophoneDevice(name string) bool {
	nameLower := strings.ToLower(name)
	return strings.Contains(nameLower, "micro") ||
		strings.Contains(nameLower, "input") ||
		strings.Contains(nameLower, "headset") ||
		strings.Contains(nameLower, "usb audio") ||
		strings.Contains(nameLower, "capture") ||
		(strings.Contains(nameLower, "analog-stereo") && !strings.Contains(nameLower, ".monitor"))
}

// rankDevices orders device entries: real microphones first, then unknown,
// then virtual/monitor devices. name extracts the comparable device name
// from an entry.
func rankDevices(entries []string, name func(string) string) []string {
	var microphones, unknown, virtual []string
	for _, e := range entries {
		n := name(e)
		switch {
		case isVirtualAudioDevice(n):
			virtual = append(virtual, e)
		case isMicrophoneDevice(n):
			microphones = append(microphones, e)
		default:
			unknown = append(unknown, e)
		}
	}
	result := make([]string, 0, len(entries))
	result = append(result, microphones...)
	result = append(result, unknown...)
	result = append(result, virtual...)
	return result
}

// avfDevicePattern matches "[0] Device Name" entries in avfoundation output.
var avfDevicePattern = regexp.MustCompile(`\[(\d+)\]\s+(.+)$`)

// parseAVFoundationDevices parses macOS avfoundation device listing.
// Example output:
//
//	[AVFoundation indev @ 0x...] AVFoundation audio devices:
//	[AVFoundation indev @ 0x...] [0] ZoomAudioDevice
//	[AVFoundation indev @ 0x...] [1] MacBook Pro Microphone
//
// Returns ":index" entries ranked with real microphones first.
func parseAVFoundationDevices(stderr string) []string {
	type device struct {
		id   string
		name string
	}
	var found []device
	inAudioSection := false

	for line := range strings.SplitSeq(stderr, "\n") {
		if strings.Contains(line, "AVFoundation audio devices:") {
			inAudioSection = true
			continue
		}
		if strings.Contains(line, "AVFoundation video devices:") {
			inAudioSection = false
			continue
		}
		if !inAudioSection {
			continue
		}
		if matches := avfDevicePattern.FindStringSubmatch(line); matches != nil {
			found = append(found, device{id: ":" + matches[1], name: matches[2]})
		}
	}

	names := make(map[string]string, len(found))
	entries := make([]string, 0, len(found))
	for _, d := range found {
		names[d.id] = d.name
		entries = append(entries, d.id)
	}
	return rankDevices(entries, func(id string) string { return names[id] })
}

// dshowSuffixPattern matches `"DeviceName" (audio)` entries.
var dshowSuffixPattern = regexp.MustCompile(`"([^"]+)"\s+\(audio\)`)

// dshowQuotedPattern matches any quoted device name.
var dshowQuotedPattern = regexp.MustCompile(`"([^"]+)"`)

// parseDShowDevices parses Windows dshow device listing. Handles both the
// section-header format (older builds) and the `"Name" (audio)` suffix
// format (gyan.dev and some static builds).
func parseDShowDevices(stderr string) []string {
	var devices []string

	if strings.Contains(stderr, "DirectShow audio devices") {
		inAudioSection := false
		for line := range strings.SplitSeq(stderr, "\n") {
			if strings.Contains(line, "DirectShow audio devices") {
				inAudioSection = true
				continue
			}
			if strings.Contains(line, "DirectShow video devices") {
				inAudioSection = false
				continue
			}
			if !inAudioSection || strings.Contains(line, "Alternative name") {
				continue
			}
			if matches := dshowQuotedPattern.FindStringSubmatch(line); matches != nil {
				devices = append(devices, matches[1])
			}
		}
	} else {
		for line := range strings.SplitSeq(stderr, "\n") {
			if strings.Contains(line, "Alternative name") {
				continue
			}
			if matches := dshowSuffixPattern.FindStringSubmatch(line); matches != nil {
				devices = append(devices, matches[1])
			}
		}
	}

	return rankDevices(devices, func(name string) string { return name })
}

// parseALSADevices returns common ALSA defaults. FFmpeg provides no device
// listing for ALSA; users should use `arecord -l` and --device for specific
// hardware.
func parseALSADevices(_ string) []string {
	return []string{"default", "hw:0", "plughw:0"}
}

// parsePulseDevices parses `pactl list sources short` output:
//
//	0	alsa_output.pci-0000_00_1f.3.analog-stereo.monitor	module-alsa-card.c	s16le 2ch 44100Hz	IDLE
//	1	alsa_input.pci-0000_00_1f.3.analog-stereo	module-alsa-card.c	s16le 2ch 44100Hz	IDLE
//
// Returns source names ranked with real inputs before monitor sources.
func parsePulseDevices(output string) []string {
	var devices []string
	for line := range strings.SplitSeq(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			devices = append(devices, fields[1])
		}
	}
	return rankDevices(devices, func(name string) string { return name })
}
