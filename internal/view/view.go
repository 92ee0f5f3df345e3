package view

import (
	"errors"
	"strconv"
)

// ErrViewNotFound is returned by a Layer when the handle no longer names a live view.
var ErrViewNotFound = errors.New("view not found")

// Handle is the opaque identifier of a view owned by the view layer.
type Handle int64

func (h Handle) String() string { return strconv.FormatInt(int64(h), 10) }

// Props is a property-name to value map as exchanged with the view layer.
type Props map[string]any

// Clone returns a shallow copy (nil stays nil).
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Layer is the narrow view-layer contract consumed by props nodes.
// Implementations are called from the graph's owning goroutine only.
type Layer interface {
	// ViewExists reports whether the handle names a live view.
	ViewExists(h Handle) bool
	// GetPropertyValues returns the current values of the requested properties.
	// Properties the view does not carry are omitted from the result.
	GetPropertyValues(h Handle, names []string) (Props, error)
	// SetPropertyValues applies props to the view. Returns ErrViewNotFound when
	// the view was torn down.
	SetPropertyValues(h Handle, props Props) error
}
