package nn

import (
	"fmt"

	"capsnet/tensor"
	"capsnet/utils"
)

// Layer names used in weight files. The training harness writes these; the
// inference side reads them back.
const (
	weightsVersion = "1.0"
	layerConv1     = "conv1"
	layerPrimary   = "primary_conv"
	layerDigitCaps = "digitcaps"
	layerDecoder   = "decoder_dense%d"
)

// CollectWeights exports every trainable tensor of the network.
func (m *CapsNet) CollectWeights() *utils.ModelWeights {
	w := &utils.ModelWeights{
		Version: weightsVersion,
		Layers:  make(map[string]utils.LayerWeight),
	}
	w.Layers[layerConv1] = utils.LayerWeight{
		Weight: utils.TensorToWeightData(layerConv1+"_w", m.Conv1.W),
		Bias:   utils.TensorToWeightData(layerConv1+"_b", m.Conv1.B),
	}
	pc := m.Primary.Conv()
	w.Layers[layerPrimary] = utils.LayerWeight{
		Weight: utils.TensorToWeightData(layerPrimary+"_w", pc.W),
		Bias:   utils.TensorToWeightData(layerPrimary+"_b", pc.B),
	}
	w.Layers[layerDigitCaps] = utils.LayerWeight{
		Weight: utils.TensorToWeightData(layerDigitCaps+"_w", m.DigitCaps.W),
	}
	for i := 0; i < m.Decoder.NumDense(); i++ {
		dw, db, _ := m.Decoder.DenseTensors(i)
		name := fmt.Sprintf(layerDecoder, i+1)
		w.Layers[name] = utils.LayerWeight{
			Weight: utils.TensorToWeightData(name+"_w", dw),
			Bias:   utils.TensorToWeightData(name+"_b", db),
		}
	}
	return w
}

// ApplyWeights loads tensors from a weight file into the network. Every
// layer present in the file is shape-checked against the architecture;
// layers absent from the file keep their initialized weights.
func (m *CapsNet) ApplyWeights(w *utils.ModelWeights) error {
	if lw, ok := w.Layers[layerConv1]; ok {
		if err := applyConv(m.Conv1.W, m.Conv1.B, lw, layerConv1); err != nil {
			return err
		}
	}
	if lw, ok := w.Layers[layerPrimary]; ok {
		pc := m.Primary.Conv()
		if err := applyConv(pc.W, pc.B, lw, layerPrimary); err != nil {
			return err
		}
	}
	if lw, ok := w.Layers[layerDigitCaps]; ok {
		if lw.Weight == nil {
			return fmt.Errorf("weights: %s has no weight tensor", layerDigitCaps)
		}
		if err := m.DigitCaps.SetWeights(utils.WeightDataToTensor(lw.Weight)); err != nil {
			return fmt.Errorf("weights: %s: %w", layerDigitCaps, err)
		}
	}
	for i := 0; i < m.Decoder.NumDense(); i++ {
		name := fmt.Sprintf(layerDecoder, i+1)
		lw, ok := w.Layers[name]
		if !ok {
			continue
		}
		if lw.Weight == nil || lw.Bias == nil {
			return fmt.Errorf("weights: %s needs both weight and bias", name)
		}
		err := m.Decoder.SetDenseTensors(i,
			utils.WeightDataToTensor(lw.Weight), utils.WeightDataToTensor(lw.Bias))
		if err != nil {
			return fmt.Errorf("weights: %s: %w", name, err)
		}
	}
	return nil
}

func applyConv(dstW, dstB *tensor.Tensor, lw utils.LayerWeight, name string) error {
	if lw.Weight == nil || lw.Bias == nil {
		return fmt.Errorf("weights: %s needs both weight and bias", name)
	}
	if err := copyChecked(dstW, lw.Weight); err != nil {
		return fmt.Errorf("weights: %s weight: %w", name, err)
	}
	if err := copyChecked(dstB, lw.Bias); err != nil {
		return fmt.Errorf("weights: %s bias: %w", name, err)
	}
	return nil
}

func copyChecked(dst *tensor.Tensor, wd *utils.WeightData) error {
	if len(wd.Shape) != len(dst.Shape) {
		return fmt.Errorf("shape %v, want %v", wd.Shape, dst.Shape)
	}
	for i := range dst.Shape {
		if wd.Shape[i] != dst.Shape[i] {
			return fmt.Errorf("shape %v, want %v", wd.Shape, dst.Shape)
		}
	}
	copy(dst.Data, wd.Data)
	return nil
}
