package types

import "time"

// ScanRun is one recorded analysis run over a project tree.
type ScanRun struct {
	ID           string    `json:"id" db:"id"`
	ProjectRoot  string    `json:"project_root" db:"project_root"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
	FilesScanned int       `json:"files_scanned" db:"files_scanned"`
	FilesFailed  int       `json:"files_failed" db:"files_failed"`
	Endpoints    int       `json:"endpoints" db:"endpoints"`
	Findings     int       `json:"findings" db:"findings"`
}
