package drm

import "sort"

// AtomicReq accumulates property assignments for an atomic commit.
// Assignments to the same object are grouped when the request is flattened;
// a later assignment to the same property wins.
type AtomicReq struct {
	props []AtomicProperty
}

type AtomicProperty struct {
	ObjectID   uint32
	PropertyID uint32
	Value      uint64
}

func NewAtomicReq() *AtomicReq { return &AtomicReq{} }

// Add queues obj.prop = value. A zero property ID is ignored so optional
// properties can be passed unconditionally.
func (r *AtomicReq) Add(objectID, propertyID uint32, value uint64) {
	if propertyID == 0 {
		return
	}
	r.props = append(r.props, AtomicProperty{ObjectID: objectID, PropertyID: propertyID, Value: value})
}

func (r *AtomicReq) Len() int { return len(r.props) }

// Properties returns the queued assignments in insertion order.
func (r *AtomicReq) Properties() []AtomicProperty {
	return append([]AtomicProperty(nil), r.props...)
}

// Lookup returns the value queued for obj.prop.
func (r *AtomicReq) Lookup(objectID, propertyID uint32) (uint64, bool) {
	for i := len(r.props) - 1; i >= 0; i-- {
		p := r.props[i]
		if p.ObjectID == objectID && p.PropertyID == propertyID {
			return p.Value, true
		}
	}
	return 0, false
}

func (r *AtomicReq) flatten() (objs, counts, props []uint32, values []uint64) {
	sorted := make([]AtomicProperty, 0, len(r.props))
	seen := make(map[[2]uint32]int, len(r.props))
	for _, p := range r.props {
		key := [2]uint32{p.ObjectID, p.PropertyID}
		if i, ok := seen[key]; ok {
			sorted[i].Value = p.Value
			continue
		}
		seen[key] = len(sorted)
		sorted = append(sorted, p)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObjectID < sorted[j].ObjectID
	})

	for i, p := range sorted {
		if i == 0 || sorted[i-1].ObjectID != p.ObjectID {
			objs = append(objs, p.ObjectID)
			counts = append(counts, 0)
		}
		counts[len(counts)-1]++
		props = append(props, p.PropertyID)
		values = append(values, p.Value)
	}
	return objs, counts, props, values
}
