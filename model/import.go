package model

import (
	"time"
)

// Stage is the import pipeline stage of a session.
type Stage string

// Pipeline stages, in order.
const (
	StageUpload   Stage = "upload"
	StageMap      Stage = "map"
	StageReview   Stage = "review"
	StageComplete Stage = "complete"
)

// stageTransitions is the full transition table of the pipeline.
// Upload advances on a successful parse, map advances on a clean
// validation run, review advances on a successful submission or goes
// back to map. A reset returns to upload from any later stage.
// Validation and submission failures are not transitions.
var stageTransitions = map[Stage][]Stage{
	StageUpload:   {StageMap},
	StageMap:      {StageReview, StageUpload},
	StageReview:   {StageComplete, StageMap, StageUpload},
	StageComplete: {StageUpload},
}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageUpload, StageMap, StageReview, StageComplete:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to target is a legal
// pipeline transition.
func (s Stage) CanTransition(target Stage) bool {
	for _, next := range stageTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// RowError sources. Validation errors are produced locally by the
// rule engine; server errors are reported back by the core banking
// API, whose row numbers are positional and therefore heuristic.
const (
	ErrorSourceValidation = "validation"
	ErrorSourceServer     = "server"
)

// RowError is a single problem tied to a display row of the uploaded
// file. Row 0 means the error concerns the file as a whole (for
// example an unmapped required field). The first data row of the file
// is row 2, accounting for the header row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// ImportResult is the outcome of a submission to the core banking API.
// Anomaly is set when imported+failed does not reconcile with the
// number of rows submitted, which would mean the backend silently
// dropped rows.
type ImportResult struct {
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors,omitempty"`
	Anomaly  string     `json:"anomaly,omitempty"`
}

// ImportSession is one run of the customer import pipeline, from file
// upload through completion. Rows always carry exactly the header set
// as keys; mapping goes from field key to column name.
type ImportSession struct {
	ID         string              `json:"id"`
	Operator   string              `json:"operator"`
	Filename   string              `json:"filename"`
	ObjectName string              `json:"-"`
	Stage      Stage               `json:"stage"`
	Headers    []string            `json:"headers,omitempty"`
	Rows       []map[string]string `json:"-"`
	Mapping    map[string]string   `json:"mapping,omitempty"`
	Errors     []RowError          `json:"errors,omitempty"`
	Result     *ImportResult       `json:"result,omitempty"`
	Submitting bool                `json:"-"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// RowCount returns the number of data rows in the session.
func (s *ImportSession) RowCount() int {
	return len(s.Rows)
}
