package rounding

import "testing"

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestFloor(t *testing.T) {
	cases := []struct{ num, step, want float64 }{
		{5.8, 0.5, 5.5},
		{2.7, 2, 2},
		{4.2, 2, 4},
	}
	for _, c := range cases {
		got := Floor(c.num, c.step)
		if !almostEqual(got, c.want) {
			t.Errorf("Floor(%v, %v) = %v, want %v", c.num, c.step, got, c.want)
		}
	}
}

func TestCeil(t *testing.T) {
	cases := []struct{ num, step, want float64 }{
		{5.1, 0.5, 5.5},
		{2.3, 2, 4},
		{6.1, 2, 8},
	}
	for _, c := range cases {
		got := Ceil(c.num, c.step)
		if !almostEqual(got, c.want) {
			t.Errorf("Ceil(%v, %v) = %v, want %v", c.num, c.step, got, c.want)
		}
	}
}

func TestDiscrete(t *testing.T) {
	got := Discrete(5.3, 0.5)
	if !almostEqual(got, 5.5) {
		t.Errorf("Discrete(5.3, 0.5) = %v, want 5.5", got)
	}
}

func TestHlRoundFloor(t *testing.T) {
	got := HlRoundFloor(1.9014664, 5, 6)
	if !almostEqual(got, 1.9014) {
		t.Errorf("HlRoundFloor = %v, want 1.9014", got)
	}
}

func TestHlRoundCeil(t *testing.T) {
	got := HlRoundCeil(1.9014664, 5, 6)
	if !almostEqual(got, 1.9015) {
		t.Errorf("HlRoundCeil = %v, want 1.9015", got)
	}
}
