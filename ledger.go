package brewery

import "time"

// Ledger keeps a history of pipeline runs.
type Ledger interface {
	// Record stores a finished run.
	Record(r RunReport) error
	// Runs returns up to limit runs, newest first. A limit below one means
	// no limit.
	Runs(limit int) ([]RunReport, error)
	Close() error
}

// RunReport describes one run of the pipeline.
type RunReport struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Fetched    int `json:"fetched"`
	SilverRows int `json:"silver_rows"`
	Dropped    int `json:"dropped"`
	Partitions int `json:"partitions"`
	Groups     int `json:"groups"`

	// Stage is the last stage that was started.
	Stage string `json:"stage"`
	// Err is empty for successful runs.
	Err string `json:"err,omitempty"`
}

// Succeeded reports whether the run finished without an error.
func (r RunReport) Succeeded() bool { return r.Err == "" }

// Stage names, used in run reports, stats and error context.
const (
	StageFetch  = "fetch"
	StageBronze = "bronze"
	StageSilver = "silver"
	StageGold   = "gold"
	StageDone   = "done"
)
