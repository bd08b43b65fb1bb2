// Package api is the thin facade the HTTP layer calls: it translates
// user-level verbs into registry and stream-log calls and normalizes
// their errors. It owns no state of its own.
package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cantido/hematite/internal/codec"
	"github.com/cantido/hematite/internal/registry"
	"github.com/cantido/hematite/internal/streamlog"
)

// Facade is the core API surface. It is safe for concurrent use.
type Facade struct {
	registry *registry.Registry
}

// New returns a Facade backed by reg.
func New(reg *registry.Registry) *Facade {
	return &Facade{registry: reg}
}

// StreamInfo is the result of GetStream.
type StreamInfo struct {
	ID           string
	Revision     uint64
	State        streamlog.RunState
	LastModified int64
}

// Health is the result of CheckHealth.
type Health struct {
	Status string
}

// CheckHealth always reports a passing status: the facade has no
// dependency that can be unhealthy short of the process itself being
// unable to run.
func (f *Facade) CheckHealth() Health {
	return Health{Status: "pass"}
}

// GetEvent returns the single event at the given revision (1-based), or
// nil if the stream has no event there.
func (f *Facade) GetEvent(user, stream string, revision uint64) (codec.Event, error) {
	if revision == 0 {
		return nil, nil
	}
	events, err := f.GetEvents(user, stream, revision-1, 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// GetEvents returns up to limit consecutive events starting at revision
// start+1.
func (f *Facade) GetEvents(user, stream string, start uint64, limit int) ([]codec.Event, error) {
	log, err := f.registry.Get(user, stream)
	if err != nil {
		return nil, wrapLookup(err)
	}
	events, err := log.Query(start, limit)
	if err != nil {
		return nil, wrapOp(err)
	}
	return events, nil
}

// AppendEvent appends a single event under the given precondition,
// returning the new revision. The stream is created lazily if absent.
func (f *Facade) AppendEvent(user, stream string, event codec.Event, expected streamlog.ExpectedRevision) (uint64, error) {
	return f.AppendEvents(user, stream, []codec.Event{event}, expected)
}

// AppendEvents appends a batch of events under the given precondition,
// returning the new revision. The stream is created lazily if absent.
func (f *Facade) AppendEvents(user, stream string, events []codec.Event, expected streamlog.ExpectedRevision) (uint64, error) {
	log, err := f.registry.GetOrCreate(user, stream)
	if err != nil {
		return 0, fmt.Errorf("api: append: %w", err)
	}
	rev, err := log.Append(events, expected)
	if err != nil {
		return 0, wrapOp(err)
	}
	return rev, nil
}

// GetStream returns stream metadata.
func (f *Facade) GetStream(user, stream string) (StreamInfo, error) {
	log, err := f.registry.Get(user, stream)
	if err != nil {
		return StreamInfo{}, wrapLookup(err)
	}
	revision, err := log.Revision()
	if err != nil {
		return StreamInfo{}, wrapOp(err)
	}
	lastModified, err := log.LastModified()
	if err != nil {
		return StreamInfo{}, wrapOp(err)
	}
	return StreamInfo{
		ID:           stream,
		Revision:     revision,
		State:        log.State(),
		LastModified: lastModified,
	}, nil
}

// SortKey identifies a field and direction to sort Streams results by.
type SortKey struct {
	Field      string // id, usage, revision, last_modified
	Descending bool
}

// ParseSortKey parses a sort key as it appears in the HTTP query string:
// an optional leading '-' for descending order.
func ParseSortKey(raw string) SortKey {
	descending := strings.HasPrefix(raw, "-")
	return SortKey{Field: strings.TrimPrefix(raw, "-"), Descending: descending}
}

// Streams lists the user's streams, sorted per key. Sorting happens
// here, not in the registry, to keep the registry's responsibilities
// narrow to storage and lookup.
func (f *Facade) Streams(user string, key SortKey) ([]StreamInfo, error) {
	summaries, err := f.registry.Streams(user)
	if err != nil {
		return nil, fmt.Errorf("api: streams: %w", err)
	}

	infos := make([]StreamInfo, len(summaries))
	for i, s := range summaries {
		infos[i] = StreamInfo{
			ID:           s.ID,
			Revision:     s.Revision,
			LastModified: s.LastModified,
			State:        streamlog.Running,
		}
	}

	sortStreams(infos, summaries, key)
	return infos, nil
}

func sortStreams(infos []StreamInfo, summaries []registry.StreamSummary, key SortKey) {
	usage := make(map[string]uint64, len(summaries))
	for _, s := range summaries {
		usage[s.ID] = s.Usage
	}

	less := func(i, j int) bool {
		a, b := infos[i], infos[j]
		switch key.Field {
		case "usage":
			return usage[a.ID] < usage[b.ID]
		case "revision":
			return a.Revision < b.Revision
		case "last_modified":
			return a.LastModified < b.LastModified
		default: // "id" and unrecognized keys sort by id
			return a.ID < b.ID
		}
	}
	sort.SliceStable(infos, func(i, j int) bool {
		if key.Descending {
			return less(j, i)
		}
		return less(i, j)
	})
}

// DeleteStream removes a stream, returning whether it existed.
func (f *Facade) DeleteStream(user, stream string) (bool, error) {
	existed, err := f.registry.Delete(user, stream)
	if err != nil {
		return false, fmt.Errorf("api: delete: %w", err)
	}
	return existed, nil
}

func wrapLookup(err error) error {
	return fmt.Errorf("api: %w", err)
}

func wrapOp(err error) error {
	return fmt.Errorf("api: %w", err)
}

// ErrStreamNotFound is returned when the requested stream has no
// registered handle. It is the same value as registry.ErrStreamNotFound,
// so callers may match against either name.
var ErrStreamNotFound = registry.ErrStreamNotFound
