package pipeline

import (
	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindStorageRead   ErrorKind = "StorageReadFailure"
	KindStorageWrite  ErrorKind = "StorageWriteFailure"
	KindStorageList   ErrorKind = "StorageListFailure"
	KindPartialDelete ErrorKind = "PartialDeleteFailure"
	KindSerialization ErrorKind = "SerializationFailure"
	KindPublish       ErrorKind = "PublishFailure"
	KindUnexpected    ErrorKind = "UnexpectedFailure"
)

func (k ErrorKind) String() string {
	return string(k)
}

// StageError tags a failure with its kind. Err carries the stack of the point
// where the stage first saw the failure.
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(kind ErrorKind, err error, msg string) error {
	return &StageError{Kind: kind, Err: errors.Wrap(err, msg)}
}

// KindOf reports the kind of err, KindUnexpected for untagged errors.
func KindOf(err error) ErrorKind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return KindUnexpected
}
