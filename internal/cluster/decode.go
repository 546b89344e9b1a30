package cluster

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/watch"
)

// EventType is the decoded type of a namespace watch event.
type EventType string

const (
	EventAdded    EventType = "Added"
	EventDeleted  EventType = "Deleted"
	EventModified EventType = "Modified"
	EventBookmark EventType = "Bookmark"
)

var (
	// ErrDecode marks a single event that could not be decoded. The stream
	// itself is still healthy.
	ErrDecode = errors.New("undecodable watch event")

	// ErrStreamError marks an ERROR event; the stream must be reopened.
	ErrStreamError = errors.New("watch stream error")
)

// Decoded is a namespace watch event reduced to what the engine needs.
type Decoded struct {
	Type            EventType
	Name            string
	ResourceVersion string
}

// Forward reports whether the event is delivered to consumers.
func (d Decoded) Forward() bool {
	return d.Type == EventAdded || d.Type == EventDeleted
}

// Decode converts a raw watch event.
func Decode(ev watch.Event) (Decoded, error) {
	var typ EventType
	switch ev.Type {
	case watch.Error:
		return Decoded{}, fmt.Errorf("%w: %v", ErrStreamError, apierrors.FromObject(ev.Object))
	case watch.Added:
		typ = EventAdded
	case watch.Deleted:
		typ = EventDeleted
	case watch.Modified:
		typ = EventModified
	case watch.Bookmark:
		typ = EventBookmark
	default:
		return Decoded{}, fmt.Errorf("%w: unknown event type %q", ErrDecode, ev.Type)
	}

	if ev.Object == nil {
		return Decoded{}, fmt.Errorf("%w: %s event without object", ErrDecode, ev.Type)
	}
	accessor, err := meta.Accessor(ev.Object)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	d := Decoded{Type: typ, Name: accessor.GetName(), ResourceVersion: accessor.GetResourceVersion()}

	// Bookmarks only carry a resource version.
	if typ != EventBookmark && d.Name == "" {
		return Decoded{}, fmt.Errorf("%w: %s event without metadata.name", ErrDecode, ev.Type)
	}
	return d, nil
}
