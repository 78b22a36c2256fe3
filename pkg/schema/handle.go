package schema

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/matzehuels/sqltree/pkg/errors"
)

// HandleKind is the role of a connector on a column.
type HandleKind int

// Connector kinds.
const (
	HandleNone HandleKind = iota
	// HandleFK is the visible connector of a referencing column.
	HandleFK
	// HandlePK is the visible connector of a referenced (primary key) column.
	HandlePK
	// HandleLaneSource is the lane connector where an edge leaves an FK column.
	HandleLaneSource
	// HandleLaneTarget is the lane connector where an edge reaches a PK column.
	HandleLaneTarget
)

var kindSuffix = map[HandleKind]string{
	HandleFK:         "in",
	HandlePK:         "out",
	HandleLaneSource: "in-src-btm",
	HandleLaneTarget: "out-tgt-btm",
}

// String returns the suffix used for the kind in handle ids.
func (k HandleKind) String() string {
	if s, ok := kindSuffix[k]; ok {
		return s
	}
	return "none"
}

// IsLane reports whether the kind carries a lane number.
func (k HandleKind) IsLane() bool { return k == HandleLaneSource || k == HandleLaneTarget }

// Handle identifies one connector: the column it belongs to, its role, and
// for lane connectors the lane index.
type Handle struct {
	FieldID string
	Kind    HandleKind
	Lane    int
}

// FKHandle returns the visible FK connector of a field.
func FKHandle(fieldID string) Handle { return Handle{FieldID: fieldID, Kind: HandleFK} }

// PKHandle returns the visible PK connector of a field.
func PKHandle(fieldID string) Handle { return Handle{FieldID: fieldID, Kind: HandlePK} }

// SourceLane returns the lane connector an edge leaves from.
func SourceLane(fieldID string, lane int) Handle {
	return Handle{FieldID: fieldID, Kind: HandleLaneSource, Lane: lane}
}

// TargetLane returns the lane connector an edge arrives at.
func TargetLane(fieldID string, lane int) Handle {
	return Handle{FieldID: fieldID, Kind: HandleLaneTarget, Lane: lane}
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h == Handle{} }

// String renders the handle id, e.g. "f_1-in-src-btm-2".
func (h Handle) String() string {
	if h.IsZero() {
		return ""
	}
	if h.Kind.IsLane() {
		return fmt.Sprintf("%s-%s-%d", h.FieldID, h.Kind, h.Lane)
	}
	return h.FieldID + "-" + h.Kind.String()
}

var (
	laneHandleRe  = regexp.MustCompile(`^(.+)-(in-src-btm|out-tgt-btm)-(\d+)$`)
	plainHandleRe = regexp.MustCompile(`^(.+)-(in|out)$`)
)

// ParseHandle parses a handle id. Ids outside the connector grammar are
// rejected with an INVALID_CONNECTION error.
func ParseHandle(s string) (Handle, error) {
	if m := laneHandleRe.FindStringSubmatch(s); m != nil {
		lane, err := strconv.Atoi(m[3])
		if err != nil {
			return Handle{}, errors.Wrap(errors.ErrCodeInvalidConnection, err, "handle %q: bad lane", s)
		}
		kind := HandleLaneSource
		if m[2] == "out-tgt-btm" {
			kind = HandleLaneTarget
		}
		return Handle{FieldID: m[1], Kind: kind, Lane: lane}, nil
	}
	if m := plainHandleRe.FindStringSubmatch(s); m != nil {
		kind := HandleFK
		if m[2] == "out" {
			kind = HandlePK
		}
		return Handle{FieldID: m[1], Kind: kind}, nil
	}
	return Handle{}, errors.New(errors.ErrCodeInvalidConnection, "handle %q is not a column connector", s)
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The empty string decodes
// to the zero handle.
func (h *Handle) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*h = Handle{}
		return nil
	}
	parsed, err := ParseHandle(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
