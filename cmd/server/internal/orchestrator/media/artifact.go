package media

import (
	"os"
	"sync"
)

// Artifact is an owned handle to one transient on-disk media file. Whoever
// holds the handle is responsible for calling Release exactly once; Release
// is idempotent so deferred cleanup on every exit path is safe.
type Artifact struct {
	path     string
	mu       sync.Mutex
	released bool
}

func newArtifact(path string) *Artifact {
	return &Artifact{path: path}
}

// Adopt wraps an existing file in an owned handle. The caller hands over
// deletion responsibility to whoever releases the artifact.
func Adopt(path string) *Artifact {
	return newArtifact(path)
}

// Path returns the on-disk location of the artifact. The path is only valid
// until Release is called.
func (a *Artifact) Path() string {
	return a.path
}

// Release deletes the underlying file. Safe to call more than once and on a
// nil receiver.
func (a *Artifact) Release() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil
	}
	a.released = true
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
