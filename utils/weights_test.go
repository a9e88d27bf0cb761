package utils

import (
	"os"
	"path/filepath"
	"testing"

	"capsnet/tensor"
)

func TestTensorToWeightData(t *testing.T) {
	// Create a test tensor
	ten := tensor.New(2, 3)
	for i := range ten.Data {
		ten.Data[i] = float64(i) * 0.5
	}

	wd := TensorToWeightData("test_weight", ten)

	if wd.Name != "test_weight" {
		t.Errorf("Name = %s, want test_weight", wd.Name)
	}
	if len(wd.Shape) != 2 || wd.Shape[0] != 2 || wd.Shape[1] != 3 {
		t.Errorf("Shape = %v, want [2, 3]", wd.Shape)
	}
	for i, v := range wd.Data {
		if v != float64(i)*0.5 {
			t.Errorf("Data[%d] = %f, want %f", i, v, float64(i)*0.5)
		}
	}

	// The export must be a copy, not a view
	wd.Data[0] = 99
	if ten.Data[0] == 99 {
		t.Error("weight data aliases the tensor")
	}
}

func TestWeightDataToTensor(t *testing.T) {
	wd := &WeightData{
		Name:  "test",
		Shape: []int{3, 4},
		Data:  make([]float64, 12),
	}
	for i := range wd.Data {
		wd.Data[i] = float64(i)
	}

	ten := WeightDataToTensor(wd)

	if len(ten.Shape) != 2 || ten.Shape[0] != 3 || ten.Shape[1] != 4 {
		t.Errorf("Shape = %v, want [3, 4]", ten.Shape)
	}
	for i, v := range ten.Data {
		if v != float64(i) {
			t.Errorf("Data[%d] = %f, want %f", i, v, float64(i))
		}
	}
}

func TestSaveLoadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.json")

	w4 := tensor.New(2, 3, 4, 5)
	for i := range w4.Data {
		w4.Data[i] = float64(i) * 0.01
	}
	bias := tensor.NewWithData([]float64{0.1, -0.2})

	weights := &ModelWeights{
		Version: "1.0",
		Layers: map[string]LayerWeight{
			"digitcaps": {Weight: TensorToWeightData("digitcaps_w", w4)},
			"conv1": {
				Weight: TensorToWeightData("conv1_w", tensor.New(2, 1, 3, 3)),
				Bias:   TensorToWeightData("conv1_b", bias),
			},
		},
	}

	if err := SaveWeights(path, weights); err != nil {
		t.Fatalf("SaveWeights: %v", err)
	}
	loaded, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("LoadWeights: %v", err)
	}

	if loaded.Version != "1.0" {
		t.Errorf("Version = %s, want 1.0", loaded.Version)
	}
	if len(loaded.Layers) != 2 {
		t.Fatalf("Layers = %d, want 2", len(loaded.Layers))
	}
	got := WeightDataToTensor(loaded.Layers["digitcaps"].Weight)
	if len(got.Shape) != 4 || got.Shape[3] != 5 {
		t.Errorf("digitcaps shape = %v, want [2, 3, 4, 5]", got.Shape)
	}
	for i, v := range got.Data {
		if v != w4.Data[i] {
			t.Fatalf("digitcaps data differs at %d: %f vs %f", i, v, w4.Data[i])
		}
	}
	gotBias := WeightDataToTensor(loaded.Layers["conv1"].Bias)
	if gotBias.Data[1] != -0.2 {
		t.Errorf("conv1 bias = %v", gotBias.Data)
	}
}

func TestLoadWeightsErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadWeights(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(bad); err == nil {
		t.Fatal("expected error for malformed json")
	}
}
