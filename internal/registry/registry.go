// Package registry implements the process-wide, multi-tenant map from
// (user, stream) to a stream-log handle: startup directory discovery,
// lazy creation, and a rescan-based stream listing.
package registry

import (
	"encoding/base32"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cantido/hematite/internal/streamlog"
)

// ErrStreamNotFound is returned by Get when no handle exists for the key.
var ErrStreamNotFound = errors.New("registry: stream not found")

const lostAndFound = "lost+found"

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

type key struct {
	user   string
	stream string
}

// StreamSummary is a listing entry for one stream, used by streams(user).
type StreamSummary struct {
	ID           string
	Revision     uint64
	LastModified int64
	Usage        uint64
}

// Registry is the concurrent (user,stream) -> *streamlog.Log map. It
// never caches a stale directory listing: Streams always rescans disk.
type Registry struct {
	root string

	mu      sync.RWMutex
	entries map[key]*streamlog.Log

	// creating tracks keys currently being created by another
	// goroutine, so concurrent GetOrCreate calls for the same key wait
	// for a single winner instead of racing file creation.
	creatingMu sync.Mutex
	creating   map[key]chan struct{}
}

// New constructs a registry rooted at root, performing the startup
// directory scan: for every <root>/<user>/<stream-dir> not named
// lost+found, it decodes the BASE32-NOPAD directory name back into a
// stream ID, registers a handle, and starts it. Malformed entries are
// skipped, not fatal.
func New(root string) (*Registry, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("registry: new: %w", err)
	}

	r := &Registry{
		root:     root,
		entries:  make(map[key]*streamlog.Log),
		creating: make(map[key]chan struct{}),
	}

	userDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("registry: new: %w", err)
	}

	for _, userDir := range userDirs {
		if !userDir.IsDir() {
			continue
		}
		userID := userDir.Name()
		streamDirs, err := os.ReadDir(filepath.Join(root, userID))
		if err != nil {
			continue
		}
		for _, streamDir := range streamDirs {
			if !streamDir.IsDir() || streamDir.Name() == lostAndFound {
				continue
			}
			streamID, err := decodeStreamDir(streamDir.Name())
			if err != nil {
				continue
			}
			k := key{user: userID, stream: streamID}
			r.entries[k] = streamlog.New(filepath.Join(root, userID, streamDir.Name()))
		}
	}

	var g errgroup.Group
	for _, log := range r.entries {
		log := log
		g.Go(func() error {
			return log.Start()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("registry: new: starting streams: %w", err)
	}

	return r, nil
}

func encodeStreamDir(streamID string) string {
	return base32NoPad.EncodeToString([]byte(streamID))
}

func decodeStreamDir(name string) (string, error) {
	b, err := base32NoPad.DecodeString(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetOrCreate returns the handle for (user, stream), creating its
// directory and a fresh, started handle on first access. Concurrent
// calls for the same key yield a single handle: the second caller
// blocks on the first's creation instead of racing directory creation.
func (r *Registry) GetOrCreate(user, stream string) (*streamlog.Log, error) {
	k := key{user: user, stream: stream}

	for {
		r.mu.RLock()
		log, ok := r.entries[k]
		r.mu.RUnlock()
		if ok {
			return log, nil
		}

		r.creatingMu.Lock()
		if wait, inFlight := r.creating[k]; inFlight {
			r.creatingMu.Unlock()
			<-wait
			continue
		}
		done := make(chan struct{})
		r.creating[k] = done
		r.creatingMu.Unlock()

		log, err := r.create(k)

		r.creatingMu.Lock()
		delete(r.creating, k)
		r.creatingMu.Unlock()
		close(done)

		if err != nil {
			return nil, err
		}
		return log, nil
	}
}

func (r *Registry) create(k key) (*streamlog.Log, error) {
	r.mu.RLock()
	if log, ok := r.entries[k]; ok {
		r.mu.RUnlock()
		return log, nil
	}
	r.mu.RUnlock()

	dir := filepath.Join(r.root, k.user, encodeStreamDir(k.stream))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: get_or_create: %w", err)
	}

	log := streamlog.New(dir)
	if err := log.Start(); err != nil {
		return nil, fmt.Errorf("registry: get_or_create: %w", err)
	}

	r.mu.Lock()
	if existing, ok := r.entries[k]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.entries[k] = log
	r.mu.Unlock()

	return log, nil
}

// Get returns the handle for (user, stream), or ErrStreamNotFound if
// none is registered. It does not touch the filesystem.
func (r *Registry) Get(user, stream string) (*streamlog.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log, ok := r.entries[key{user: user, stream: stream}]
	if !ok {
		return nil, ErrStreamNotFound
	}
	return log, nil
}

// Streams lists all streams belonging to user by rescanning
// <root>/<user>/ and joining with the in-memory registry, so streams
// created on disk since the last call (e.g. by another process
// instance) are visible. Sorting is the caller's responsibility.
func (r *Registry) Streams(user string) ([]StreamSummary, error) {
	userDir := filepath.Join(r.root, user)
	dirEntries, err := os.ReadDir(userDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: streams: %w", err)
	}

	var summaries []StreamSummary
	for _, e := range dirEntries {
		if !e.IsDir() || e.Name() == lostAndFound {
			continue
		}
		streamID, err := decodeStreamDir(e.Name())
		if err != nil {
			continue
		}

		log, err := r.GetOrCreate(user, streamID)
		if err != nil {
			continue
		}

		revision, err := log.Revision()
		if err != nil {
			continue
		}
		lastModified, err := log.LastModified()
		if err != nil {
			continue
		}
		usage, err := log.FileLen()
		if err != nil {
			continue
		}

		summaries = append(summaries, StreamSummary{
			ID:           streamID,
			Revision:     revision,
			LastModified: lastModified,
			Usage:        usage,
		})
	}
	return summaries, nil
}

// Delete removes (user, stream) from the map and deletes its on-disk
// files. It is idempotent: deleting an absent stream returns false,
// not an error.
func (r *Registry) Delete(user, stream string) (bool, error) {
	k := key{user: user, stream: stream}

	r.mu.Lock()
	log, ok := r.entries[k]
	if ok {
		delete(r.entries, k)
	}
	r.mu.Unlock()

	if !ok {
		return false, nil
	}

	if err := log.Delete(); err != nil {
		return false, fmt.Errorf("registry: delete: %w", err)
	}
	return true, nil
}
