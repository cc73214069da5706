package wine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

const uciSnippet = `"fixed acidity";"volatile acidity";"citric acid";"residual sugar";"chlorides";"free sulfur dioxide";"total sulfur dioxide";"density";"pH";"sulphates";"alcohol";"quality"
7.4;0.7;0;1.9;0.076;11;34;0.9978;3.51;0.56;9.4;5
7.8;0.88;0;2.6;0.098;25;67;0.9968;3.2;0.68;9.8;5
11.2;0.28;0.56;1.9;0.075;17;60;0.998;3.16;0.58;9.8;6
`

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(uciSnippet))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}
	if tbl.Samples[0] != DefaultSample() {
		t.Errorf("first row = %v, want %v", tbl.Samples[0], DefaultSample())
	}
	if tbl.Quality[2] != 6 {
		t.Errorf("Quality[2] = %v, want 6", tbl.Quality[2])
	}

	X, y, err := tbl.Matrices()
	if err != nil {
		t.Fatal(err)
	}
	if r, c := X.Dims(); r != 3 || c != NumFeatures {
		t.Errorf("X dims = %dx%d", r, c)
	}
	if X.At(2, int(CitricAcid)) != 0.56 || y.At(1, 0) != 5 {
		t.Error("matrix values do not match the table")
	}
	if got := tbl.Column(Alcohol); got[1] != 9.8 {
		t.Errorf("Column(Alcohol) = %v", got)
	}
}

func TestReadCSV_ReordersColumns(t *testing.T) {
	// quality first, alcohol and fixed acidity swapped, plus an unknown column
	in := "quality,alcohol,volatile acidity,citric acid,residual sugar,chlorides,free sulfur dioxide,total sulfur dioxide,density,pH,sulphates,fixed acidity,colour\n" +
		"5,9.4,0.7,0,1.9,0.076,11,34,0.9978,3.51,0.56,7.4,red\n"

	tbl, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if tbl.Samples[0] != DefaultSample() {
		t.Errorf("row = %v, want %v", tbl.Samples[0], DefaultSample())
	}
	if tbl.Quality[0] != 5 {
		t.Errorf("quality = %v", tbl.Quality[0])
	}
}

func TestReadCSV_Errors(t *testing.T) {
	header := strings.Join(append(ColumnNames(), QualityColumn), ";")
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header only", header + "\n"},
		{"missing quality", strings.Join(ColumnNames(), ";") + "\n" + strings.Repeat("1;", 10) + "1\n"},
		{"missing feature", "alcohol;quality\n9;5\n"},
		{"not a number", header + "\n" + strings.Repeat("1;", 10) + "abc;5\n"},
		{"nan cell", header + "\n" + strings.Repeat("1;", 10) + "NaN;5\n"},
		{"ragged row", header + "\n1;2;3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := ReadCSV(strings.NewReader(""))
	if !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("empty input error = %v, want ErrEmptyData", err)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(uciSnippet))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if first, _, _ := strings.Cut(buf.String(), "\n"); !strings.HasPrefix(first, "fixed acidity;volatile acidity;") || !strings.HasSuffix(first, ";quality") {
		t.Errorf("header = %q", first)
	}

	back, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	for i := range tbl.Samples {
		if back.Samples[i] != tbl.Samples[i] || back.Quality[i] != tbl.Quality[i] {
			t.Errorf("row %d changed: %v/%v vs %v/%v", i, back.Samples[i], back.Quality[i], tbl.Samples[i], tbl.Quality[i])
		}
	}
}

func TestTableHead(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(uciSnippet))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		n, want int
	}{
		{2, 2}, {0, 0}, {10, 3}, {-1, 3},
	}
	for _, tt := range tests {
		if got := tbl.Head(tt.n).Len(); got != tt.want {
			t.Errorf("Head(%d).Len() = %d, want %d", tt.n, got, tt.want)
		}
	}
}
