package utils

import (
	"math"
	"strings"
	"testing"
)

func TestClampFloat64(t *testing.T) {
	tests := []struct {
		value, min, max, expected float64
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{0, 0, 0, 0},
	}

	for _, tt := range tests {
		if got := ClampFloat64(tt.value, tt.min, tt.max); got != tt.expected {
			t.Errorf("ClampFloat64(%f, %f, %f) = %f, expected %f", tt.value, tt.min, tt.max, got, tt.expected)
		}
	}
}

func TestMeanAndSum(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	if got := Sum(values); got != 10 {
		t.Errorf("Sum = %f, expected 10", got)
	}
	if got := Mean(values); got != 2.5 {
		t.Errorf("Mean = %f, expected 2.5", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %f, expected 0", got)
	}
}

func TestSign(t *testing.T) {
	tests := []struct {
		in, expected float64
	}{
		{3, 1},
		{-0.5, -1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Sign(tt.in); got != tt.expected {
			t.Errorf("Sign(%f) = %f, expected %f", tt.in, got, tt.expected)
		}
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) {
		t.Errorf("expected 1.5 to be finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Errorf("expected NaN and Inf to be non-finite")
	}
}

func TestGenerateRunID(t *testing.T) {
	id1 := GenerateRunID()
	id2 := GenerateRunID()

	if !strings.HasPrefix(id1, "run-") {
		t.Fatalf("expected run- prefix, got %s", id1)
	}
	if id1 == id2 {
		t.Fatalf("expected unique run IDs, got %s twice", id1)
	}
}
