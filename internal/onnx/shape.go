package onnx

import (
	"strconv"
	"strings"
)

// FormatShape renders a tensor shape as its dimensions joined by "x", in
// order, e.g. [-1 4] -> "-1x4". An empty shape renders as "".
func FormatShape(shape []int64) string {
	if len(shape) == 0 {
		return ""
	}
	var b strings.Builder
	for i, d := range shape {
		if i > 0 {
			b.WriteByte('x')
		}
		b.WriteString(strconv.FormatInt(d, 10))
	}
	return b.String()
}
