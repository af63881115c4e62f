package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/alnah/go-capture/internal/backend"
	"github.com/alnah/go-capture/internal/capture"
	"github.com/alnah/go-capture/internal/config"
	"github.com/alnah/go-capture/internal/ffmpeg"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have production defaults via DefaultEnv(). Tests override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	FFmpegResolver  FFmpegResolver
	ConfigLoader    ConfigLoader
	BackendFactory  BackendFactory
	RecorderFactory RecorderFactory
}

// FFmpegResolver resolves the path to the FFmpeg binary.
type FFmpegResolver interface {
	Resolve() (string, error)
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// Backend is the full client surface the commands need: registration,
// chunk upload, and the two status reads. *backend.Client implements this.
type Backend interface {
	Register(ctx context.Context) (string, error)
	UploadChunk(ctx context.Context, chunk capture.Chunk) (backend.Ack, error)
	StatusAll(ctx context.Context) (json.RawMessage, error)
	Status(ctx context.Context, sessionID string) (json.RawMessage, error)
}

// BackendFactory creates backend clients.
type BackendFactory interface {
	NewBackend(baseURL string, timeout time.Duration) (Backend, error)
}

// Recorder is a segment recorder that also knows its resolved device and
// can enumerate alternatives. *capture.FFmpegRecorder implements this.
type Recorder interface {
	capture.SegmentRecorder
	capture.DeviceLister
	Device() string
}

// RecorderFactory creates audio recorders.
type RecorderFactory interface {
	NewRecorder(ctx context.Context, ffmpegPath, device string) (Recorder, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) {
		e.FFmpegResolver = r
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithBackendFactory sets the backend client factory.
func WithBackendFactory(f BackendFactory) EnvOption {
	return func(e *Env) {
		e.BackendFactory = f
	}
}

// WithRecorderFactory sets the recorder factory.
func WithRecorderFactory(f RecorderFactory) EnvOption {
	return func(e *Env) {
		e.RecorderFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		Getenv:          os.Getenv,
		Now:             time.Now,
		FFmpegResolver:  &defaultFFmpegResolver{},
		ConfigLoader:    &defaultConfigLoader{},
		BackendFactory:  &defaultBackendFactory{},
		RecorderFactory: &defaultRecorderFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve() (string, error) {
	return ffmpeg.Resolve()
}

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

type defaultBackendFactory struct{}

func (defaultBackendFactory) NewBackend(baseURL string, timeout time.Duration) (Backend, error) {
	return backend.NewClient(baseURL, backend.WithTimeout(timeout))
}

type defaultRecorderFactory struct{}

func (defaultRecorderFactory) NewRecorder(ctx context.Context, ffmpegPath, device string) (Recorder, error) {
	return capture.NewFFmpegRecorder(ctx, ffmpegPath, device)
}

// Compile-time interface verification.
var (
	_ FFmpegResolver  = (*defaultFFmpegResolver)(nil)
	_ ConfigLoader    = (*defaultConfigLoader)(nil)
	_ BackendFactory  = (*defaultBackendFactory)(nil)
	_ RecorderFactory = (*defaultRecorderFactory)(nil)
	_ Backend         = (*backend.Client)(nil)
	_ Recorder        = (*capture.FFmpegRecorder)(nil)
)
