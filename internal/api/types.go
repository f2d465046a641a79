// File path: internal/api/types.go
package api

import (
	"github.com/cascadia-pm/backoffice/internal/comps"
	"github.com/cascadia-pm/backoffice/internal/kb"
	"github.com/cascadia-pm/backoffice/internal/store"
)

type askRequest struct {
	Question string `json:"question"`
}

type importChunksRequest struct {
	Chunks []kb.Chunk `json:"chunks"`
}

type importChunksResponse struct {
	Imported int    `json:"imported"`
	Indexed  int    `json:"indexed"`
	Warning  string `json:"warning,omitempty"`
}

type syncCompsRequest struct {
	Source comps.DataSource   `json:"source"`
	Comps  []comps.RentalComp `json:"comps"`
}

type syncCompsResponse struct {
	Source  comps.DataSource `json:"source"`
	Written int              `json:"written"`
}

type importCompsResponse struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

type analyzeRequest struct {
	Subject comps.SubjectProperty `json:"subject"`
}

type baselineRequest = store.Baseline
