package wine

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Origin tells where a Table was read from.
type Origin string

const (
	OriginNetwork Origin = "network"
	OriginCache   Origin = "cache"
	OriginReader  Origin = "reader"
)

// Table is the labelled dataset: one Sample and one quality score per row.
type Table struct {
	Samples []Sample
	Quality []float64
	Origin  Origin
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Samples)
}

// Head returns a table holding at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > t.Len() {
		n = t.Len()
	}
	return &Table{
		Samples: append([]Sample(nil), t.Samples[:n]...),
		Quality: append([]float64(nil), t.Quality[:n]...),
		Origin:  t.Origin,
	}
}

// Matrices returns the feature matrix (n×11) and the target column (n×1).
func (t *Table) Matrices() (*mat.Dense, *mat.Dense, error) {
	n := t.Len()
	if n == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "Table.Matrices")
	}
	X := mat.NewDense(n, NumFeatures, nil)
	for i, s := range t.Samples {
		X.SetRow(i, s[:])
	}
	y := mat.NewDense(n, 1, append([]float64(nil), t.Quality...))
	return X, y, nil
}

// Column returns the values of one feature across all rows.
func (t *Table) Column(f Feature) []float64 {
	out := make([]float64, t.Len())
	for i, s := range t.Samples {
		out[i] = s[f]
	}
	return out
}

// ReadCSV parses a dataset with a header row. The delimiter is ';' unless the
// header contains none, in which case ',' is assumed. Columns may appear in any
// order and extra columns are ignored; quality and all eleven features are
// required.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, errors.Wrap(err, "failed to read dataset")
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "ReadCSV")
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset header")
	}

	var cols [NumFeatures]int
	for i := range cols {
		cols[i] = -1
	}
	qualityCol := -1
	for j, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if strings.EqualFold(name, QualityColumn) {
			qualityCol = j
			continue
		}
		if f, ok := ParseFeature(name); ok {
			cols[f] = j
		}
	}
	if qualityCol < 0 {
		return nil, errors.NewValueError("ReadCSV", "header has no quality column")
	}
	for i, j := range cols {
		if j < 0 {
			return nil, errors.NewValueError("ReadCSV", "header has no '"+featureTable[i].column+"' column")
		}
	}

	t := &Table{Origin: OriginReader}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "malformed dataset row")
		}
		line, _ := cr.FieldPos(0)

		var s Sample
		for i, j := range cols {
			v, err := parseCell(record[j])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d, column %q", line, featureTable[i].column)
			}
			s[i] = v
		}
		q, err := parseCell(record[qualityCol])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d, column %q", line, QualityColumn)
		}
		t.Samples = append(t.Samples, s)
		t.Quality = append(t.Quality, q)
	}

	if t.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "ReadCSV: no data rows")
	}
	return t, nil
}

func sniffDelimiter(head []byte) rune {
	firstLine := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		firstLine = head[:i]
	}
	if bytes.IndexByte(firstLine, ';') < 0 && bytes.IndexByte(firstLine, ',') >= 0 {
		return ','
	}
	return ';'
}

func parseCell(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.NewValueError("ReadCSV", "not a number: "+strconv.Quote(s))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.NewValueError("ReadCSV", "non-finite value: "+strconv.Quote(s))
	}
	return v, nil
}

// WriteCSV writes the table semicolon-delimited with the header in feature
// order followed by quality.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := append(ColumnNames(), QualityColumn)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write dataset header")
	}

	record := make([]string, NumFeatures+1)
	for i, s := range t.Samples {
		for j, v := range s {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[NumFeatures] = strconv.FormatFloat(t.Quality[i], 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "failed to write dataset row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush dataset")
}
