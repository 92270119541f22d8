package actuator

import (
	"fmt"
	"sort"
)

// Registry maps point IDs to output channel indexes. The mapping is fixed
// at construction from the relay bank configuration: prefix "ro" with start
// index 1 and 8 channels yields ro1 on channel 0 through ro8 on channel 7.
type Registry struct {
	byPointID map[string]int
	byIndex   []string
}

// NewRegistry builds the point ID mapping for a relay bank.
func NewRegistry(prefix string, startIndex, count int) *Registry {
	r := &Registry{
		byPointID: make(map[string]int, count),
		byIndex:   make([]string, count),
	}
	for ch := 0; ch < count; ch++ {
		pointID := fmt.Sprintf("%s%d", prefix, startIndex+ch)
		r.byPointID[pointID] = ch
		r.byIndex[ch] = pointID
	}
	return r
}

// Lookup returns the channel index for a point ID.
func (r *Registry) Lookup(pointID string) (int, bool) {
	idx, ok := r.byPointID[pointID]
	return idx, ok
}

// PointID returns the point ID for a channel index, or "" if out of range.
func (r *Registry) PointID(index int) string {
	if index < 0 || index >= len(r.byIndex) {
		return ""
	}
	return r.byIndex[index]
}

// PointIDs returns all mapped point IDs in channel order.
func (r *Registry) PointIDs() []string {
	ids := make([]string, len(r.byIndex))
	copy(ids, r.byIndex)
	return ids
}

// SortedPointIDs returns all mapped point IDs in lexical order.
func (r *Registry) SortedPointIDs() []string {
	ids := r.PointIDs()
	sort.Strings(ids)
	return ids
}

// Count returns the number of mapped channels.
func (r *Registry) Count() int {
	return len(r.byIndex)
}
