package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/alnah/go-capture/internal/backend"
	"github.com/alnah/go-capture/internal/capture"
	"github.com/alnah/go-capture/internal/config"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// Mock FFmpegResolver
// ---------------------------------------------------------------------------

type mockFFmpegResolver struct {
	ResolveFunc func() (string, error)
}

func (m *mockFFmpegResolver) Resolve() (string, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc()
	}
	return "/usr/bin/ffmpeg", nil
}

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Config, error)
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.Config{BackendURL: "http://backend.test"}, nil
}

// ---------------------------------------------------------------------------
// Mock Backend + factory
// ---------------------------------------------------------------------------

type mockBackend struct {
	RegisterFunc  func(ctx context.Context) (string, error)
	UploadFunc    func(ctx context.Context, chunk capture.Chunk) (backend.Ack, error)
	StatusAllFunc func(ctx context.Context) (json.RawMessage, error)
	StatusFunc    func(ctx context.Context, sessionID string) (json.RawMessage, error)

	mu       sync.Mutex
	uploaded []capture.Chunk
}

func (m *mockBackend) Register(ctx context.Context) (string, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx)
	}
	return "sess-test", nil
}

func (m *mockBackend) UploadChunk(ctx context.Context, chunk capture.Chunk) (backend.Ack, error) {
	m.mu.Lock()
	m.uploaded = append(m.uploaded, chunk)
	m.mu.Unlock()

	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, chunk)
	}
	return backend.Ack{Status: "chunk uploaded"}, nil
}

func (m *mockBackend) StatusAll(ctx context.Context) (json.RawMessage, error) {
	if m.StatusAllFunc != nil {
		return m.StatusAllFunc(ctx)
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockBackend) Status(ctx context.Context, sessionID string) (json.RawMessage, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, sessionID)
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockBackend) Uploaded() []capture.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]capture.Chunk(nil), m.uploaded...)
}

type mockBackendFactory struct {
	backend *mockBackend
	err     error

	mu          sync.Mutex
	lastBaseURL string
	lastTimeout time.Duration
}

func (m *mockBackendFactory) NewBackend(baseURL string, timeout time.Duration) (Backend, error) {
	m.mu.Lock()
	m.lastBaseURL = baseURL
	m.lastTimeout = timeout
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if m.backend == nil {
		m.backend = &mockBackend{}
	}
	return m.backend, nil
}

func (m *mockBackendFactory) BaseURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBaseURL
}

// ---------------------------------------------------------------------------
// Mock Recorder + factory
// ---------------------------------------------------------------------------

type mockRecorder struct {
	device  string
	payload []byte

	ListDevicesFunc   func(ctx context.Context) ([]string, error)
	RecordSegmentFunc func(ctx context.Context, duration time.Duration, output string) error
}

func (m *mockRecorder) RecordSegment(ctx context.Context, duration time.Duration, output string) error {
	if m.RecordSegmentFunc != nil {
		return m.RecordSegmentFunc(ctx, duration, output)
	}
	payload := m.payload
	if payload == nil {
		payload = []byte("opus")
	}
	// Pace the cycle so a test's max-duration stop fires after a handful
	// of segments rather than thousands.
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Millisecond):
	}
	return os.WriteFile(output, payload, 0o600)
}

func (m *mockRecorder) ListDevices(ctx context.Context) ([]string, error) {
	if m.ListDevicesFunc != nil {
		return m.ListDevicesFunc(ctx)
	}
	return []string{m.device}, nil
}

func (m *mockRecorder) Device() string {
	if m.device == "" {
		return "mock-mic"
	}
	return m.device
}

type mockRecorderFactory struct {
	recorder *mockRecorder
	err      error
}

func (m *mockRecorderFactory) NewRecorder(_ context.Context, _, device string) (Recorder, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.recorder == nil {
		m.recorder = &mockRecorder{device: device}
	}
	return m.recorder, nil
}

// ---------------------------------------------------------------------------
// Test env builder
// ---------------------------------------------------------------------------

type testMocks struct {
	stdout   *syncBuffer
	stderr   *syncBuffer
	resolver *mockFFmpegResolver
	loader   *mockConfigLoader
	factory  *mockBackendFactory
	recorder *mockRecorderFactory
}

func newTestMocks() *testMocks {
	return &testMocks{
		stdout:   &syncBuffer{},
		stderr:   &syncBuffer{},
		resolver: &mockFFmpegResolver{},
		loader:   &mockConfigLoader{},
		factory:  &mockBackendFactory{backend: &mockBackend{}},
		recorder: &mockRecorderFactory{recorder: &mockRecorder{}},
	}
}

func (m *testMocks) env() *Env {
	return &Env{
		Stdout:          m.stdout,
		Stderr:          m.stderr,
		Getenv:          func(string) string { return "" },
		Now:             time.Now,
		FFmpegResolver:  m.resolver,
		ConfigLoader:    m.loader,
		BackendFactory:  m.factory,
		RecorderFactory: m.recorder,
	}
}
