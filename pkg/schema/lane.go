package schema

import (
	"fmt"
	"slices"
)

// DefaultLanes is the lane count of a column endpoint with few connections.
const DefaultLanes = 6

// NextLane returns the lowest lane in [0, max) missing from used. When every
// lane is taken it falls back to len(used) % max and connectors overlap.
// A non-positive max means DefaultLanes.
func NextLane(used []int, max int) int {
	if max <= 0 {
		max = DefaultLanes
	}
	for i := 0; i < max; i++ {
		if !slices.Contains(used, i) {
			return i
		}
	}
	return len(used) % max
}

// LaneCapacity returns the lane count for an endpoint that already has degree
// connections. It grows with the degree so a busy column never runs out.
func LaneCapacity(degree int) int {
	return max(DefaultLanes, degree+2)
}

// AllocateLane picks the lane for a new connection at an endpoint whose
// current lanes are used.
func AllocateLane(used []int) int {
	return NextLane(used, LaneCapacity(len(used)))
}

// UsedLanes returns the lanes occupied at one endpoint: the source side of an
// FK column (kind HandleLaneSource) or the target side of a PK column (kind
// HandleLaneTarget) of the given node.
func UsedLanes(edges []Edge, nodeID, fieldID string, kind HandleKind) []int {
	var used []int
	for _, e := range edges {
		var node string
		var h Handle
		switch kind {
		case HandleLaneSource:
			node, h = e.Source, e.SourceHandle
		case HandleLaneTarget:
			node, h = e.Target, e.TargetHandle
		default:
			return nil
		}
		if node == nodeID && h.FieldID == fieldID && h.Kind == kind {
			used = append(used, h.Lane)
		}
	}
	return used
}

// EdgeID builds the id of a foreign-key edge from its endpoints and lanes.
func EdgeID(source, sourceField, target, targetField string, sourceLane, targetLane int) string {
	return fmt.Sprintf("e-%s-%s-%s-%s-%d-%d", source, sourceField, target, targetField, sourceLane, targetLane)
}
