package types

// Model represents a discoverable or loadable ONNX model on disk.
type Model struct {
	// Stable identifier for the model (the file name under the models dir).
	// example: pid-bdt.onnx
	ID string `json:"id" example:"pid-bdt.onnx"`
	// Human-friendly name.
	// example: pid-bdt.onnx
	Name string `json:"name" example:"pid-bdt.onnx"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/onnx/pid-bdt.onnx
	Path string `json:"path" example:"/home/user/models/onnx/pid-bdt.onnx"`
	// File size in MB, as scanned. Zero when unknown.
	// example: 12
	SizeMB int `json:"size_mb,omitempty" example:"12"`
}

// TensorDesc describes one declared model input or output.
type TensorDesc struct {
	// Tensor name as declared by the model graph.
	// example: features
	Name string `json:"name" example:"features"`
	// Declared shape; -1 marks a dynamic dimension (conventionally batch size).
	Shape []int64 `json:"shape"`
	// Shape rendered as a dimension string.
	// example: -1x4
	Dims string `json:"dims" example:"-1x4"`
}
