package weather

import "errors"

// ErrorData is the single failure kind a lookup can produce.
type ErrorData struct {
	Message string `json:"message"`
}

func (e *ErrorData) Error() string {
	return e.Message
}

const unknownErrorMessage = "Unknown error!"

var ErrNotFound = errors.New("no results found")

// AsErrorData collapses any error into an ErrorData. Errors that are not
// already an ErrorData become the generic unknown error.
func AsErrorData(err error) *ErrorData {
	if err == nil {
		return nil
	}

	var ed *ErrorData
	if errors.As(err, &ed) && ed.Message != "" {
		return ed
	}

	return &ErrorData{Message: unknownErrorMessage}
}
