package tensor

import (
	"math"
	"testing"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestAdd(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float64{4, 5, 6}, Shape: []int{3}}
	c, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 7, 9}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestAddShapeMismatch(t *testing.T) {
	a := New(2, 3)
	b := New(3, 2)
	if _, err := Add(a, b); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3, 4}, Shape: []int{2, 2}}
	b := &Tensor{Data: []float64{5, 6, 7, 8}, Shape: []int{2, 2}}
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{19, 22, 43, 50}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestReshape(t *testing.T) {
	a := New(2, 3, 4)
	for i := range a.Data {
		a.Data[i] = float64(i)
	}
	b, err := a.Reshape(6, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Shape) != 2 || b.Shape[0] != 6 || b.Shape[1] != 4 {
		t.Fatalf("unexpected shape: %v", b.Shape)
	}
	for i := range a.Data {
		if b.Data[i] != a.Data[i] {
			t.Fatalf("data changed at %d", i)
		}
	}
}

func TestReshapeInferred(t *testing.T) {
	a := New(2, 12)
	b, err := a.Reshape(2, -1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if b.Shape[1] != 3 {
		t.Fatalf("inferred dim = %d, want 3", b.Shape[1])
	}
	if _, err := a.Reshape(5, -1); err == nil {
		t.Fatal("expected error for non-divisible inferred reshape")
	}
	if _, err := a.Reshape(-1, -1); err == nil {
		t.Fatal("expected error for two inferred dims")
	}
}

func TestReluPlain(t *testing.T) {
	a := &Tensor{Data: []float64{-1, 0, 3}, Shape: []int{3}}
	c := ReluPlain(a)
	want := []float64{0, 0, 3}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestSigmoidPlain(t *testing.T) {
	a := &Tensor{Data: []float64{0, 100, -100}, Shape: []int{3}}
	c := SigmoidPlain(a)
	if math.Abs(c.Data[0]-0.5) > 1e-12 {
		t.Errorf("sigmoid(0) = %f, want 0.5", c.Data[0])
	}
	if c.Data[1] < 0.999 || c.Data[2] > 0.001 {
		t.Errorf("sigmoid saturation wrong: %v", c.Data)
	}
}

func TestAtSet(t *testing.T) {
	a := New(2, 3, 4)
	a.Set(7.5, 1, 2, 3)
	if a.At(1, 2, 3) != 7.5 {
		t.Fatalf("At(1,2,3) = %f, want 7.5", a.At(1, 2, 3))
	}
	if a.Data[len(a.Data)-1] != 7.5 {
		t.Fatalf("flat index mismatch")
	}
}
