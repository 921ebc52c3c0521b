package trajectory

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/azybler/mapmatch/pkg/geo"
)

const isoMillis = "2006-01-02 15:04:05.000"

// WritePaths serializes paths to w in the persistence format: a header row
// "#,pid,oid,first_enter,last_leave" per path followed by one row per
// PathEntity ("enter_iso,leave_iso,eid"), timestamps as millisecond-precision
// ISO 8601 with a space date/time separator.
func WritePaths(w io.Writer, paths []Path) error {
	bw := bufio.NewWriter(w)
	for _, p := range paths {
		if len(p.Entities) == 0 {
			continue
		}
		first := p.Entities[0].EnterTime
		last := p.Entities[len(p.Entities)-1].LeaveTime
		if _, err := fmt.Fprintf(bw, "#,%s,%s,%s,%s\n",
			p.PID, p.OID, first.UTC().Format(isoMillis), last.UTC().Format(isoMillis)); err != nil {
			return err
		}
		for _, e := range p.Entities {
			if _, err := fmt.Fprintf(bw, "%s,%s,%d\n",
				e.EnterTime.UTC().Format(isoMillis), e.LeaveTime.UTC().Format(isoMillis), e.EID); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadPaths parses the persistence format written by WritePaths.
func ReadPaths(r io.Reader) ([]Path, error) {
	scanner := bufio.NewScanner(r)
	var paths []Path
	var oid, pid string
	var entities []PathEntity

	flush := func() {
		if len(entities) != 0 {
			paths = append(paths, Path{OID: oid, PID: pid, Entities: entities})
		}
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if fields[0] == "#" {
			flush()
			pid = fields[1]
			oid = fields[2]
			entities = nil
			continue
		}
		enter, err := time.Parse(isoMillis, fields[0])
		if err != nil {
			return nil, fmt.Errorf("trajectory: parse enter_time %q: %w", fields[0], err)
		}
		leave, err := time.Parse(isoMillis, fields[1])
		if err != nil {
			return nil, fmt.Errorf("trajectory: parse leave_time %q: %w", fields[1], err)
		}
		eid, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("trajectory: parse eid %q: %w", fields[2], err)
		}
		entities = append(entities, PathEntity{EnterTime: enter, LeaveTime: leave, EID: uint32(eid)})
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// WriteTrajectories serializes raw trajectories, one header row
// "#,tid,oid" followed by one row per point ("iso_time,lat,lng"). Supplements
// the spec's Path persistence format with an input/round-trip format for
// the raw trajectories the matcher consumes, in the source corpus's own
// header-then-points layout.
func WriteTrajectories(w io.Writer, trajs []Trajectory) error {
	bw := bufio.NewWriter(w)
	for _, traj := range trajs {
		if _, err := fmt.Fprintf(bw, "#,%s,%s\n", traj.TID, traj.OID); err != nil {
			return err
		}
		for _, pt := range traj.Pts {
			if _, err := fmt.Fprintf(bw, "%s,%s,%s\n",
				pt.Time.UTC().Format(isoMillis),
				strconv.FormatFloat(pt.Lat, 'f', -1, 64),
				strconv.FormatFloat(pt.Lng, 'f', -1, 64)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadTrajectories parses the format written by WriteTrajectories.
func ReadTrajectories(r io.Reader) ([]Trajectory, error) {
	scanner := bufio.NewScanner(r)
	var trajs []Trajectory
	var oid, tid string
	var pts []STPoint

	flush := func() error {
		if len(pts) == 0 {
			return nil
		}
		traj, err := New(oid, tid, pts)
		if err != nil {
			return err
		}
		trajs = append(trajs, traj)
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if fields[0] == "#" {
			if err := flush(); err != nil {
				return nil, err
			}
			tid = fields[1]
			oid = fields[2]
			pts = nil
			continue
		}
		t, err := time.Parse(isoMillis, fields[0])
		if err != nil {
			return nil, fmt.Errorf("trajectory: parse time %q: %w", fields[0], err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("trajectory: parse lat %q: %w", fields[1], err)
		}
		lng, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("trajectory: parse lng %q: %w", fields[2], err)
		}
		pts = append(pts, STPoint{SPoint: geo.SPoint{Lat: lat, Lng: lng}, Time: t})
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return trajs, nil
}
