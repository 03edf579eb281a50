package model

// WorkResult is the terminal outcome of one blur task run.
// A failed result carries no output and keeps the cause in Err.
type WorkResult struct {
	Output map[string]string
	Err    error
}

// Success returns a successful result carrying output.
func Success(output map[string]string) WorkResult {
	return WorkResult{Output: output}
}

// Failure returns a failed result caused by err.
func Failure(err error) WorkResult {
	return WorkResult{Err: err}
}

// Succeeded reports whether the task finished without error.
func (r WorkResult) Succeeded() bool {
	return r.Err == nil
}
