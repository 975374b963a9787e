// Package store persists the reports materialized by the indexer and the
// durable state of the oracle contract.
package store

import (
	"context"
	"errors"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Listing limits.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ErrNotFound is returned when no report exists for an ID.
var ErrNotFound = errors.New("report not found")

// ListOptions filters and bounds a report listing. Zero values mean no filter.
type ListOptions struct {
	City      string
	Requester *common.Address
	Limit     int
}

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return o.Limit
	}
}

func (o ListOptions) match(r domain.Report) bool {
	if o.City != "" && r.City != o.City {
		return false
	}
	if o.Requester != nil && r.Requester != *o.Requester {
		return false
	}
	return true
}

// ReportStore holds at most one report per request ID.
type ReportStore interface {
	// Get returns the report for id or ErrNotFound.
	Get(ctx context.Context, id common.Hash) (domain.Report, error)
	// Insert stores r unless a report with the same ID exists. It reports
	// whether r was stored; an existing report is never modified.
	Insert(ctx context.Context, r domain.Report) (bool, error)
	// List returns reports newest first by timestamp, ties broken by ID.
	List(ctx context.Context, opts ListOptions) ([]domain.Report, error)
	// Ping checks that the store is usable.
	Ping(ctx context.Context) error
}
