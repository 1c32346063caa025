package models

import (
	"fmt"
	"time"
)

type WarningStatus string

const (
	StatusIssued    WarningStatus = "ISSUED"
	StatusContinued WarningStatus = "CONTINUED"
	StatusCancelled WarningStatus = "CANCELLED"
)

// ParseWarningStatus maps the VPWW54 status text to its enum value.
func ParseWarningStatus(s string) (WarningStatus, error) {
	switch s {
	case "発表":
		return StatusIssued, nil
	case "継続":
		return StatusContinued, nil
	case "解除":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("unrecognized warning status %q", s)
	}
}

// WarningRecord is the last known status of one warning kind for one city.
// At most one non-deleted record exists per (city, kind) pair.
type WarningRecord struct {
	ID        int64
	City      string // normalized area name, e.g. "千代田区"
	LMO       string // issuing local meteorological office
	Kind      string // warning category, e.g. "大雨警報"
	Status    WarningStatus
	XMLFile   string // report file that produced this state
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParsedWarning is one (city, kind, status) tuple extracted from a report.
// It is transient and never persisted directly.
type ParsedWarning struct {
	City    string
	LMO     string
	Kind    string
	Status  WarningStatus
	XMLFile string
}

// ReportFile tracks one fetched document: its validation metadata and the
// name of the raw bytes cached on disk.
type ReportFile struct {
	ID           int64
	URL          string
	LMO          string
	FileName     string
	LastModified string // validator echoed back as If-Modified-Since
	IsDeleted    bool
	FetchedAt    time.Time
	UpdatedAt    time.Time
}

type TransitionKind string

const (
	TransitionIssued    TransitionKind = "ISSUED"
	TransitionContinued TransitionKind = "CONTINUED"
	TransitionCancelled TransitionKind = "CANCELLED"
)

// Transition is one actionable status change handed to the notifier.
// OldStatus is empty when no prior record existed.
type Transition struct {
	Kind      TransitionKind
	City      string
	LMO       string
	Warning   string // warning kind, e.g. "大雨警報"
	OldStatus WarningStatus
	NewStatus WarningStatus
	XMLFile   string // source report identifier
}
