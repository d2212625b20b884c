package types

import "github.com/pkg/errors"

var (
	// ErrInputOpen is returned when a source video is missing, corrupt or cannot be decoded.
	ErrInputOpen = errors.New("cannot open input video")
	// ErrInvalidZoomFactor is returned for zoom factors below 1, NaN or infinite.
	ErrInvalidZoomFactor = errors.New("invalid zoom factor")
	// ErrEncode is returned when writing the output video fails.
	ErrEncode = errors.New("cannot encode output video")
	// ErrDirectory is returned when the output directory cannot be created or the input
	// directory cannot be listed.
	ErrDirectory = errors.New("directory error")
	// ErrInvalidOptions is returned when options fail validation for any other reason.
	ErrInvalidOptions = errors.New("invalid options")
)

// KindError attaches one of the error kinds above to an underlying cause.
// Both the kind and the cause are reachable through errors.Is.
type KindError struct {
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// WrapKind annotates err with message and tags it with kind. A nil err yields nil.
func WrapKind(kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&KindError{Kind: kind, Err: errors.WithMessage(err, message)})
}

// WrapKindf is WrapKind with a format string.
func WrapKindf(kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&KindError{Kind: kind, Err: errors.WithMessagef(err, format, args...)})
}
