package feed

// ItemStatus is the processing outcome of a single fed file.
type ItemStatus string

// Feed item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusError   ItemStatus = "error"
	StatusSkipped ItemStatus = "skipped"
)

// Result is the outcome of feeding one file.
type Result struct {
	path   string
	docID  string
	status ItemStatus
	err    error
}

// NewOK creates a successful feed result.
func NewOK(path, docID string) Result { return Result{path: path, docID: docID, status: StatusOK} }

// NewError creates a failed feed result.
func NewError(path, docID string, err error) Result {
	return Result{path: path, docID: docID, status: StatusError, err: err}
}

// NewSkipped creates a result for a file that was intentionally not written.
func NewSkipped(path, docID, reason string) Result {
	return Result{path: path, docID: docID, status: StatusSkipped, err: skipReason(reason)}
}

// Path returns the source path of the file.
func (r Result) Path() string { return r.path }

// DocID returns the document identifier derived from the path.
func (r Result) DocID() string { return r.docID }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any. For skipped items it describes the reason.
func (r Result) Err() error { return r.err }

// Summary counts results per status.
type Summary struct {
	OK      int
	Failed  int
	Skipped int
}

// Summarize counts outcomes.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.status {
		case StatusOK:
			s.OK++
		case StatusError:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

type skipReason string

func (s skipReason) Error() string { return string(s) }
