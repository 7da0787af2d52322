package postprocess

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOutputFormat is matched by errors raised when the network output layer
	// is of a kind no decoder understands.
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")
	// ErrMalformedTensor is matched by errors raised when a raw tensor does not have the
	// row layout its decoder expects.
	ErrMalformedTensor = errors.New("malformed tensor")
	// ErrClassIndexOutOfRange is matched by errors raised when a class id has no entry in
	// the configured label table.
	ErrClassIndexOutOfRange = errors.New("class index out of range")
)

// MalformedTensorError describes why a raw output tensor was rejected.
type MalformedTensorError struct {
	// Index is the position of the tensor among the frame outputs, or -1 when unknown.
	Index  int
	Reason string
}

func (e *MalformedTensorError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedTensor, e.Reason)
	}
	return fmt.Sprintf("%s: output %d: %s", ErrMalformedTensor, e.Index, e.Reason)
}

// Is matches ErrMalformedTensor.
func (e *MalformedTensorError) Is(target error) bool {
	return target == ErrMalformedTensor
}

// Malformedf builds a MalformedTensorError with an unknown index from a format string.
func Malformedf(format string, args ...interface{}) error {
	return &MalformedTensorError{Index: -1, Reason: fmt.Sprintf(format, args...)}
}

// AtOutput records the output index on a MalformedTensorError found in err's chain.
// Other errors are returned unchanged.
func AtOutput(err error, index int) error {
	var malformed *MalformedTensorError
	if errors.As(err, &malformed) {
		malformed.Index = index
	}
	return err
}
