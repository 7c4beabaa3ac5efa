package llm

import "fmt"

// UpstreamError reports that the model could not produce usable content:
// the API call failed, returned no choices, or returned output that does
// not parse or does not match the expected schema.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
