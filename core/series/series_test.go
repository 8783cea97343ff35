package series

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckLength(t *testing.T) {
	s := New("day_ahead", make([]float64, 10))
	assert.NoError(t, s.CheckLength(10))
	if err := s.CheckLength(12); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if err := New("empty", nil).CheckLength(0); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestAtWraps(t *testing.T) {
	s := New("p", []float64{1, 2, 3})
	checks := []struct {
		step int
		want float64
	}{{0, 1}, {2, 3}, {3, 1}, {7, 2}, {-1, 3}}
	for _, c := range checks {
		if got := s.At(c.step); got != c.want {
			t.Errorf("At(%d) = %v want %v", c.step, got, c.want)
		}
	}
	assert.Equal(t, []float64{3, 1}, s.Window(2, 2))
}

func TestNormalized(t *testing.T) {
	s := New("nrv", []float64{-4, 2, 1})
	assert.Equal(t, []float64{-1, 0.5, 0.25}, s.Normalized(0, 3))
	assert.Equal(t, []float64{0, 0}, New("zero", []float64{0, 0}).Normalized(0, 2))
}
