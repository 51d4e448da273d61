package receivable

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/quota"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service answers receivable queries on top of the quota tracker.
type Service struct {
	tracker *quota.Tracker
}

// NewService builds Service.
func NewService(tracker *quota.Tracker) *Service {
	return &Service{tracker: tracker}
}

// Project returns one page of receivable rows.
func (s *Service) Project(ctx context.Context, q Query) (Projection, error) {
	q.Page, q.PerPage = shared.NormalizePage(q.Page, q.PerPage)
	snap, err := s.tracker.Load(ctx, q.Filter())
	if err != nil {
		return Projection{}, err
	}
	rows := Flatten(snap.Candidates, snap.Paid, s.tracker.Now(), q.IncludePaid)
	return Projection{
		Rows:       rows,
		Totals:     quota.Sum(rows),
		Pagination: shared.NewPagination(q.Page, q.PerPage, snap.Total),
	}, nil
}

// Aging buckets every outstanding quota, optionally for one customer. A zero asOf means now.
func (s *Service) Aging(ctx context.Context, customerID uuid.NullUUID, asOf time.Time) (Aging, error) {
	if asOf.IsZero() {
		asOf = s.tracker.Now()
	}
	rows, err := s.all(ctx, Query{CustomerID: customerID}, asOf)
	if err != nil {
		return Aging{}, err
	}
	return BuildAging(rows, asOf), nil
}

// Export renders every row matching q, ignoring pagination, as XLSX.
func (s *Service) Export(ctx context.Context, q Query) ([]byte, error) {
	now := s.tracker.Now()
	rows, err := s.all(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return BuildXLSX(rows, BuildAging(rows, now))
}

func (s *Service) all(ctx context.Context, q Query, now time.Time) ([]quota.Quota, error) {
	filter := q.Filter()
	filter.Page, filter.PerPage = 0, 0
	snap, err := s.tracker.Load(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Flatten(snap.Candidates, snap.Paid, now, q.IncludePaid), nil
}
