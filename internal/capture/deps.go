package capture

import "os"

// tempDirCreator creates temporary directories.
type tempDirCreator interface {
	MkdirTemp(dir, pattern string) (string, error)
}

// segmentFS reads and removes finished segment files.
type segmentFS interface {
	ReadFile(name string) ([]byte, error)
	Remove(name string) error
	RemoveAll(path string) error
}

// --- Default implementations using real OS functions ---

// osTempDirCreator implements tempDirCreator using os.MkdirTemp.
type osTempDirCreator struct{}

func (osTempDirCreator) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

// osSegmentFS implements segmentFS using the os package.
type osSegmentFS struct{}

func (osSegmentFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name) // #nosec G304 -- name is an internal temp segment path
}

func (osSegmentFS) Remove(name string) error {
	return os.Remove(name)
}

func (osSegmentFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
