package trajectory

import "time"

// PathEntity is one edge traversal reconstructed from a matched trajectory:
// the time window during which the object was on edge EID.
type PathEntity struct {
	EnterTime time.Time
	LeaveTime time.Time
	EID       uint32
}

// Path is a contiguous sequence of PathEntities belonging to one object. A
// single trajectory may yield more than one Path when the matcher breaks
// mid-trajectory and recovers.
type Path struct {
	OID      string
	PID      string
	Entities []PathEntity
}

const pidTimeLayout = "200601021504"

// NewPath builds a Path from oid and a non-empty entity list, deriving PID
// from oid and the first entry time/last leave time.
func NewPath(oid string, entities []PathEntity) Path {
	pid := oid +
		entities[0].EnterTime.Format(pidTimeLayout) +
		entities[len(entities)-1].LeaveTime.Format(pidTimeLayout)
	return Path{OID: oid, PID: pid, Entities: entities}
}
