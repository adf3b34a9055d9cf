package review

import "errors"

var (
	// ErrBusy is returned when a control is already running its action.
	ErrBusy = errors.New("action already in progress")
	// ErrEmptySelection is returned by batch actions with nothing selected. No request is sent.
	ErrEmptySelection = errors.New("no items selected")
	ErrCanceled       = errors.New("canceled")
	ErrNotFound       = errors.New("region not found")
	// ErrUnsupportedFile rejects uploads that are not .jpg, .jpeg or .png.
	ErrUnsupportedFile = errors.New("unsupported file type (want .jpg, .jpeg or .png)")
	// ErrDatasetMissing refuses LMDB conversion before a dataset was generated.
	ErrDatasetMissing = errors.New("no dataset generated yet")
)
