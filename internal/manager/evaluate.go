package manager

import (
	"context"
	"fmt"

	"onnxd/internal/onnx"
	"onnxd/pkg/types"
)

// Evaluate resolves the target model, ensures its instance, admits the
// request through the per-instance queue, and runs the evaluation. The flat
// form derives rows from the model's declared per-row input width; the
// prepared form submits the given tensors as-is.
func (m *Manager) Evaluate(ctx context.Context, req types.EvalRequest) (types.EvalResponse, error) {
	modelID, err := m.resolveModelID(req.Model)
	if err != nil {
		return types.EvalResponse{}, err
	}
	if err := m.EnsureInstance(ctx, modelID); err != nil {
		return types.EvalResponse{}, err
	}
	// Admission: per-instance FIFO queue, single in-flight.
	release, err := m.beginEvaluation(ctx, modelID)
	if err != nil {
		return types.EvalResponse{}, err
	}
	defer release()

	m.mu.RLock()
	inst := m.instances[modelID]
	m.mu.RUnlock()
	if inst == nil || inst.Model == nil {
		return types.EvalResponse{}, ErrModelNotFound(modelID)
	}

	var out onnx.Tensor
	if len(req.Inputs) > 0 {
		tensors, err := preparedTensors(req.Inputs, inst.Model.Inputs())
		if err != nil {
			return types.EvalResponse{}, err
		}
		out, err = inst.Model.Evaluate(tensors)
		if err != nil {
			return types.EvalResponse{}, err
		}
	} else {
		out, err = inst.Model.EvaluateFlat(req.Values)
		if err != nil {
			return types.EvalResponse{}, err
		}
	}

	resp := types.EvalResponse{
		Model:  modelID,
		Shape:  out.Shape,
		Values: out.Data,
	}
	if len(out.Shape) > 0 {
		resp.Rows = out.Shape[0]
	}
	return resp, nil
}

// preparedTensors converts request tensors to runtime tensors. Unnamed
// entries are matched to the model's declared inputs by position.
func preparedTensors(inputs []types.EvalInput, declared []onnx.TensorInfo) ([]onnx.Tensor, error) {
	out := make([]onnx.Tensor, len(inputs))
	for i, in := range inputs {
		name := in.Name
		if name == "" {
			if i >= len(declared) {
				return nil, onnx.ErrShape(fmt.Sprintf("input %d: model declares only %d inputs", i, len(declared)))
			}
			name = declared[i].Name
		}
		out[i] = onnx.Tensor{Name: name, Shape: in.Shape, Data: in.Values}
	}
	return out, nil
}
