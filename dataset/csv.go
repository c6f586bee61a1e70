package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/onurbagoren/UW-SLAM/frontend"
	"github.com/onurbagoren/UW-SLAM/imu"
)

// ErrMissingColumn is returned when a required header column is absent.
var ErrMissingColumn = errors.New("missing column")

// Accepted names of the timestamp column, in order of preference.
var timeColumns = []string{"timestamp", "time", "%time", "field.header.stamp", "t"}

// Accepted names of the depth value column.
var depthColumns = []string{"depth", "field.depth", "data", "value"}

type table struct {
	header map[string]int
	rows   [][]string
}

// readTable reads a CSV file whose first row is a header. Header names are matched case
// insensitively with surrounding space removed.
func readTable(r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv")
	}
	if len(records) == 0 {
		return nil, errors.New("csv has no header")
	}
	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return &table{header: header, rows: records[1:]}, nil
}

// column returns the index of the first of names present in the header.
func (t *table) column(names ...string) (int, error) {
	for _, name := range names {
		if idx, ok := t.header[name]; ok {
			return idx, nil
		}
	}
	return 0, errors.Wrapf(ErrMissingColumn, "want one of %v", names)
}

func (t *table) columns(names ...string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, name := range names {
		idx, err := t.column(name)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// floats parses the given columns of row i. Line numbers in errors count the header.
func (t *table) floats(i int, cols []int) ([]float64, error) {
	row := t.rows[i]
	out := make([]float64, len(cols))
	for j, col := range cols {
		if col >= len(row) {
			return nil, errors.Errorf("line %d: missing field %d", i+2, col)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+2)
		}
		out[j] = v
	}
	return out, nil
}

// stamp is a raw log timestamp. Integer stamps, such as Unix nanoseconds, are kept exact.
type stamp struct {
	whole int64
	frac  float64
}

func parseStamp(field string) (stamp, error) {
	field = strings.TrimSpace(field)
	if v, err := strconv.ParseInt(field, 10, 64); err == nil {
		return stamp{whole: v}, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return stamp{}, err
	}
	whole := math.Floor(v)
	if math.IsNaN(v) || math.Abs(whole) >= math.MaxInt64 {
		return stamp{}, errors.Errorf("timestamp %q out of range", field)
	}
	return stamp{whole: int64(whole), frac: v - whole}, nil
}

// since returns s - origin in raw units. The integer parts are subtracted before the conversion to
// float64, so nanosecond stamps stay exact for runs shorter than about 104 days.
func (s stamp) since(origin int64) float64 {
	return float64(s.whole-origin) + s.frac
}

// stamp parses column col of row i.
func (t *table) stamp(i, col int) (stamp, error) {
	row := t.rows[i]
	if col >= len(row) {
		return stamp{}, errors.Errorf("line %d: missing field %d", i+2, col)
	}
	st, err := parseStamp(row[col])
	return st, errors.Wrapf(err, "line %d", i+2)
}

// ReadStates reads external estimator rows. Columns are found by name and may be in any order.
func ReadStates(r io.Reader) ([]frontend.StateRow, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	cols, err := t.columns("x", "y", "z", "u", "v", "r", "phi", "theta", "psi")
	if err != nil {
		return nil, err
	}
	rows := make([]frontend.StateRow, 0, len(t.rows))
	for i := range t.rows {
		v, err := t.floats(i, cols)
		if err != nil {
			return nil, err
		}
		rows = append(rows, frontend.StateRow{
			X: v[0], Y: v[1], Z: v[2],
			U: v[3], V: v[4], R: v[5],
			Phi: v[6], Theta: v[7], Psi: v[8],
		})
	}
	return rows, nil
}

// ReadStateTimes reads one raw timestamp per row and returns them relative to the first one,
// together with the first stamp in raw units. A header row is optional. When present the
// timestamp column is found by name, otherwise the first column is used.
func ReadStateTimes(r io.Reader) ([]float64, int64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to read csv")
	}

	col, rows, firstLine := 0, records, 1
	if len(records) > 0 && len(records[0]) > 0 {
		if _, err := parseStamp(records[0][0]); err != nil {
			t := &table{header: map[string]int{}}
			for i, name := range records[0] {
				t.header[strings.ToLower(strings.TrimSpace(name))] = i
			}
			if idx, err := t.column(timeColumns...); err == nil {
				col = idx
			}
			rows, firstLine = records[1:], 2
		}
	}

	stamps := make([]stamp, 0, len(rows))
	for i, row := range rows {
		if col >= len(row) {
			return nil, 0, errors.Errorf("line %d: missing field %d", i+firstLine, col)
		}
		st, err := parseStamp(row[col])
		if err != nil {
			return nil, 0, errors.Wrapf(err, "line %d", i+firstLine)
		}
		stamps = append(stamps, st)
	}
	if len(stamps) == 0 {
		return []float64{}, 0, nil
	}
	origin := stamps[0].whole
	times := make([]float64, len(stamps))
	for i, st := range stamps {
		times[i] = st.since(origin)
	}
	return times, origin, nil
}

// ReadIMU reads inertial samples. Timestamps are taken relative to origin, in raw units, and
// then multiplied by scale to give seconds.
func ReadIMU(r io.Reader, scale float64, origin int64) ([]imu.Sample, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	timeCol, err := t.column(timeColumns...)
	if err != nil {
		return nil, err
	}
	cols, err := t.columns("omega_x", "omega_y", "omega_z", "ax", "ay", "az")
	if err != nil {
		return nil, err
	}

	samples := make([]imu.Sample, 0, len(t.rows))
	for i := range t.rows {
		st, err := t.stamp(i, timeCol)
		if err != nil {
			return nil, err
		}
		v, err := t.floats(i, cols)
		if err != nil {
			return nil, err
		}
		samples = append(samples, imu.Sample{
			Time:            st.since(origin) * scale,
			AngularVelocity: r3.Vector{X: v[0], Y: v[1], Z: v[2]},
			SpecificForce:   r3.Vector{X: v[3], Y: v[4], Z: v[5]},
		})
	}
	return samples, nil
}

// DepthSeries is a depth sensor log. It is loaded for future use and not yet fused.
type DepthSeries struct {
	Times  []float64
	Values []float64
}

// Len returns the number of readings.
func (ds DepthSeries) Len() int {
	return len(ds.Times)
}

// ReadDepth reads depth readings. Timestamps are taken relative to origin and multiplied by scale.
func ReadDepth(r io.Reader, scale float64, origin int64) (DepthSeries, error) {
	t, err := readTable(r)
	if err != nil {
		return DepthSeries{}, err
	}
	timeCol, err := t.column(timeColumns...)
	if err != nil {
		return DepthSeries{}, err
	}
	valueCol, err := t.column(depthColumns...)
	if err != nil {
		return DepthSeries{}, err
	}

	out := DepthSeries{
		Times:  make([]float64, 0, len(t.rows)),
		Values: make([]float64, 0, len(t.rows)),
	}
	for i := range t.rows {
		st, err := t.stamp(i, timeCol)
		if err != nil {
			return DepthSeries{}, err
		}
		v, err := t.floats(i, []int{valueCol})
		if err != nil {
			return DepthSeries{}, err
		}
		out.Times = append(out.Times, st.since(origin)*scale)
		out.Values = append(out.Values, v[0])
	}
	return out, nil
}
