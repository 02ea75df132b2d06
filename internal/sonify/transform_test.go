package sonify

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{10, 20, 30})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Normalize()[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestNormalize_ConstantSeries(t *testing.T) {
	got := Normalize([]float64{7, 7, 7})
	for i, v := range got {
		if v != 0 {
			t.Errorf("Normalize(constant)[%d] = %f, want 0", i, v)
		}
	}
}

func TestNormalize_SkipsNaN(t *testing.T) {
	got := Normalize([]float64{0, math.NaN(), 10})
	if got[0] != 0 || got[2] != 1 {
		t.Errorf("Normalize() = %v, want NaN ignored in span", got)
	}
	if !math.IsNaN(got[1]) {
		t.Errorf("Normalize() NaN cell = %f, want NaN preserved", got[1])
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		transform Transform
		in        float64
		want      float64
	}{
		{"none passes through", TransformNone, 3, 3},
		{"square", TransformSquare, 3, 9},
		{"sqrt", TransformSquareRoot, 9, 3},
		{"log", TransformLog10, 100, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.transform, []float64{tt.in})
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if math.Abs(got[0]-tt.want) > 1e-12 {
				t.Errorf("Apply(%s, %f) = %f, want %f", tt.transform, tt.in, got[0], tt.want)
			}
		})
	}
}

func TestApply_DomainEdges(t *testing.T) {
	got, err := Apply(TransformSquareRoot, []float64{-4})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !math.IsNaN(got[0]) {
		t.Errorf("sqrt(-4) = %f, want NaN", got[0])
	}

	got, err = Apply(TransformLog10, []float64{0})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !math.IsNaN(got[0]) {
		t.Errorf("log(0) = %f, want NaN", got[0])
	}
}

func TestApply_UnknownTransform(t *testing.T) {
	if _, err := Apply(Transform("fourier"), []float64{1}); err == nil {
		t.Error("Apply() accepted unknown transform")
	}
}
