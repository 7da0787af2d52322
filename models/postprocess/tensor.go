package postprocess

import (
	"reflect"

	"gorgonia.org/tensor"
)

// RawTensor is a read-only numeric buffer produced by the inference collaborator.
//
// *tensor.Dense satisfies it. The semantic meaning of the last axis depends on the
// output format; decoders only ever read it.
type RawTensor interface {
	Shape() tensor.Shape
	Dtype() tensor.Dtype
	Data() interface{}
}

// RowView exposes a tensor as a sequence of rows along its last axis.
type RowView struct {
	data  []float32
	width int
}

// Len returns the number of rows.
func (v RowView) Len() int {
	if v.width == 0 {
		return 0
	}
	return len(v.data) / v.width
}

// Width returns the number of elements per row.
func (v RowView) Width() int {
	return v.width
}

// Row returns the i-th row. The returned slice aliases the tensor data and must not be
// modified.
func (v RowView) Row(i int) []float32 {
	return v.data[i*v.width : (i+1)*v.width]
}

// Rows views t as rows of its last axis, requiring at least minWidth elements per row.
//
// Leading axes are flattened, so a 1x1xNx7 blob and an Nx7 matrix both yield N rows of 7.
//
// Arguments:
//   - t: The raw tensor.
//   - minWidth: The minimum number of elements per row the decoder reads.
//
// Returns:
//   - RowView: The row view over the tensor data.
//   - error: A MalformedTensorError when the shape, dtype or length does not fit.
func Rows(t RawTensor, minWidth int) (RowView, error) {
	if isNil(t) {
		return RowView{}, Malformedf("nil tensor")
	}

	shape := t.Shape()
	if len(shape) == 0 {
		return RowView{}, Malformedf("scalar tensor has no rows")
	}

	width := shape[len(shape)-1]
	if width <= 0 || width < minWidth {
		return RowView{}, Malformedf("row width %d is less than %d (shape %v)", width, minWidth, shape)
	}

	data, err := float32Data(t)
	if err != nil {
		return RowView{}, err
	}

	if len(data)%width != 0 {
		return RowView{}, Malformedf("%d elements do not divide into rows of %d", len(data), width)
	}

	return RowView{data: data, width: width}, nil
}

// isNil also catches a nil pointer stored in the interface, such as a (*tensor.Dense)(nil).
func isNil(t RawTensor) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func float32Data(t RawTensor) ([]float32, error) {
	switch d := t.Data().(type) {
	case []float32:
		return d, nil
	case []float64:
		out := make([]float32, len(d))
		for i, v := range d {
			out[i] = float32(v)
		}
		return out, nil
	case float32:
		return []float32{d}, nil
	case float64:
		return []float32{float32(d)}, nil
	default:
		return nil, Malformedf("unsupported dtype %v", t.Dtype())
	}
}
