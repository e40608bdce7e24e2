package meshio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/soypat/meshproj"
	"gonum.org/v1/gonum/spatial/r3"
)

// ResultHeader is the header row written by WriteResult.
var ResultHeader = []string{"px", "py", "pz", "ba", "bb", "bc", "triangle", "dist2"}

// ReadPoints reads comma separated x,y,z rows. Lines starting with '#' are
// ignored and the first row is skipped if none of its fields are numeric,
// which allows a header.
func ReadPoints(r io.Reader) ([]r3.Vec, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	var pts []r3.Vec
	for row := 0; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(record) != 3 {
			return nil, fmt.Errorf("line %d: want 3 fields x,y,z, got %d", line, len(record))
		}
		var (
			v    [3]float64
			nerr int
			perr error
		)
		for i, field := range record {
			v[i], err = strconv.ParseFloat(field, 64)
			if err != nil {
				nerr++
				perr = err
			}
		}
		if row == 0 && nerr == len(record) {
			continue // header.
		}
		if perr != nil {
			return nil, fmt.Errorf("line %d: %w", line, perr)
		}
		pts = append(pts, r3.Vec{X: v[0], Y: v[1], Z: v[2]})
	}
	return pts, nil
}

// WriteResult writes one CSV row per query of res, preceded by ResultHeader.
func WriteResult(w io.Writer, res meshproj.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeader); err != nil {
		return err
	}
	record := make([]string, len(ResultHeader))
	for i := 0; i < res.Len(); i++ {
		p, b := res.Projections[i], res.Barycentric[i]
		record[0] = formatFloat(p.X)
		record[1] = formatFloat(p.Y)
		record[2] = formatFloat(p.Z)
		record[3] = formatFloat(b[0])
		record[4] = formatFloat(b[1])
		record[5] = formatFloat(b[2])
		record[6] = strconv.Itoa(res.Triangles[i])
		record[7] = formatFloat(res.Dist2[i])
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
