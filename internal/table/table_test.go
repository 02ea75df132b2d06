package table

import (
	"math"
	"testing"
)

func sampleTable() *Table {
	return &Table{
		Labels: []string{"Time", "Flux"},
		Rows: [][]string{
			{"0", "1.5"},
			{"1", ""},
			{"2", "3.5"},
		},
	}
}

func TestColumnIndex(t *testing.T) {
	tbl := sampleTable()

	if got := tbl.ColumnIndex("flux"); got != 1 {
		t.Errorf("ColumnIndex(flux) = %d, want 1", got)
	}
	if got := tbl.ColumnIndex("missing"); got != -1 {
		t.Errorf("ColumnIndex(missing) = %d, want -1", got)
	}
}

func TestFloat64Column(t *testing.T) {
	tbl := sampleTable()

	vals, err := tbl.Float64Column(1)
	if err != nil {
		t.Fatalf("Float64Column() error = %v", err)
	}
	if vals[0] != 1.5 || vals[2] != 3.5 {
		t.Errorf("values = %v, want [1.5 NaN 3.5]", vals)
	}
	if !math.IsNaN(vals[1]) {
		t.Errorf("empty cell = %v, want NaN", vals[1])
	}
}

func TestFloat64Column_Errors(t *testing.T) {
	tbl := sampleTable()

	if _, err := tbl.Float64Column(5); err == nil {
		t.Error("out-of-range column did not error")
	}

	tbl.Rows[0][0] = "not-a-number"
	if _, err := tbl.Float64Column(0); err == nil {
		t.Error("non-numeric cell did not error")
	}
}
