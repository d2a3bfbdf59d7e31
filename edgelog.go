package loopclosure

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/roboswarm/loopclosure/spatial"
	"github.com/roboswarm/loopclosure/vlc"
)

var edgeLogHeader = []string{"robot1", "pose1", "robot2", "pose2", "qx", "qy", "qz", "qw", "tx", "ty", "tz"}

// SaveLoopClosures rewrites path with the given edges as CSV, one row per
// edge, in order.
func SaveLoopClosures(path string, edges []Edge) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(edgeLogHeader); err != nil {
		return err
	}
	for _, e := range edges {
		q := e.Pose.Quaternion()
		t := e.Pose.Translation()
		row := []string{
			strconv.FormatUint(uint64(e.Src.Robot), 10),
			strconv.FormatUint(uint64(e.Src.Pose), 10),
			strconv.FormatUint(uint64(e.Dst.Robot), 10),
			strconv.FormatUint(uint64(e.Dst.Pose), 10),
			formatFloat(q.Imag),
			formatFloat(q.Jmag),
			formatFloat(q.Kmag),
			formatFloat(q.Real),
			formatFloat(t.X),
			formatFloat(t.Y),
			formatFloat(t.Z),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// LoadLoopClosures reads a CSV written by SaveLoopClosures.
func LoadLoopClosures(path string) ([]Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(edgeLogHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || records[0][0] != edgeLogHeader[0] {
		return nil, fmt.Errorf("edge log %q: missing header", path)
	}

	edges := make([]Edge, 0, len(records)-1)
	for _, rec := range records[1:] {
		e, err := parseEdgeRow(rec)
		if err != nil {
			return nil, fmt.Errorf("edge log %q: %w", path, err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func parseEdgeRow(rec []string) (Edge, error) {
	robot1, err := strconv.ParseUint(rec[0], 10, 16)
	if err != nil {
		return Edge{}, err
	}
	pose1, err := strconv.ParseUint(rec[1], 10, 32)
	if err != nil {
		return Edge{}, err
	}
	robot2, err := strconv.ParseUint(rec[2], 10, 16)
	if err != nil {
		return Edge{}, err
	}
	pose2, err := strconv.ParseUint(rec[3], 10, 32)
	if err != nil {
		return Edge{}, err
	}
	vals := make([]float64, 7)
	for i := 0; i < 7; i++ {
		vals[i], err = strconv.ParseFloat(rec[4+i], 64)
		if err != nil {
			return Edge{}, err
		}
	}
	return Edge{
		Src: vlc.VertexID{Robot: uint16(robot1), Pose: uint32(pose1)},
		Dst: vlc.VertexID{Robot: uint16(robot2), Pose: uint32(pose2)},
		Pose: spatial.Pose{
			R: quat.Number{Imag: vals[0], Jmag: vals[1], Kmag: vals[2], Real: vals[3]},
			T: r3.Vector{X: vals[4], Y: vals[5], Z: vals[6]},
		},
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// saveCommStats writes per-robot received byte counts, one row per robot
// in the fleet.
func saveCommStats(path string, numRobots uint16, bowBytes, vlcBytes map[uint16]int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"robot", "bow_bytes_received", "vlc_bytes_received"}); err != nil {
		return err
	}
	for robot := uint16(0); robot < numRobots; robot++ {
		row := []string{
			strconv.FormatUint(uint64(robot), 10),
			strconv.FormatInt(bowBytes[robot], 10),
			strconv.FormatInt(vlcBytes[robot], 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
