package capture

import "errors"

// ErrCaptureUnavailable indicates the audio capture device could not be
// acquired (no device, permission denied). Fatal to starting a recording.
var ErrCaptureUnavailable = errors.New("audio capture unavailable")

// ErrNoAudioDevice indicates no audio input device was found or detected.
var ErrNoAudioDevice = errors.New("no audio input device found")

// ErrAlreadyRecording indicates Run was called on a controller that is not idle.
var ErrAlreadyRecording = errors.New("recording already in progress")

// ErrInvalidSegmentLength indicates a non-positive segment duration.
var ErrInvalidSegmentLength = errors.New("segment length must be positive")
