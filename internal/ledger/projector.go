package ledger

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/campusbank/backend/internal/models"
)

// SortOrder selects how Filtered arranges a transaction view.
type SortOrder string

const (
	NewestFirst      SortOrder = "newest"
	OldestFirst      SortOrder = "oldest"
	AmountDescending SortOrder = "amount-high"
	AmountAscending  SortOrder = "amount-low"
)

// KindAll is the Filtered kind filter that admits every transaction kind.
const KindAll = "all"

// Projector derives read-only views over one account's transaction log.
// Each view is computed from a single Get, so it sees one consistent state
// of the record and never observes a half-applied mutation. The returned
// sequences are lazy and restartable; iterating them never touches the
// store again and never mutates it.
type Projector struct {
	store Store
}

func NewProjector(store Store) *Projector {
	return &Projector{store: store}
}

// Recent returns up to n transactions, newest first.
func (p *Projector) Recent(ctx context.Context, accountNo string, n int) (iter.Seq[models.Transaction], error) {
	view, err := p.load(ctx, accountNo)
	if err != nil {
		return nil, err
	}
	sortView(view, NewestFirst)
	if n >= 0 && n < len(view) {
		view = view[:n]
	}
	return sequence(view), nil
}

// Filtered returns the account's transactions narrowed to one kind (or
// KindAll) in the requested order. Ties within an ordering are broken by
// transaction id ascending, so a view is deterministic.
func (p *Projector) Filtered(ctx context.Context, accountNo, kind string, order SortOrder) (iter.Seq[models.Transaction], error) {
	if kind != KindAll && !models.ValidKind(models.TransactionKind(kind)) {
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
	switch order {
	case NewestFirst, OldestFirst, AmountDescending, AmountAscending:
	default:
		return nil, fmt.Errorf("unknown sort order %q", order)
	}

	view, err := p.load(ctx, accountNo)
	if err != nil {
		return nil, err
	}
	if kind != KindAll {
		filtered := view[:0]
		for _, t := range view {
			if string(t.Kind) == kind {
				filtered = append(filtered, t)
			}
		}
		view = filtered
	}
	sortView(view, order)
	return sequence(view), nil
}

// load copies the log out of one consistent read of the record.
func (p *Projector) load(ctx context.Context, accountNo string) ([]models.Transaction, error) {
	rec, err := p.store.Get(ctx, accountNo)
	if err != nil {
		return nil, err
	}
	return append([]models.Transaction(nil), rec.Transactions...), nil
}

func sortView(view []models.Transaction, order SortOrder) {
	sort.SliceStable(view, func(i, j int) bool {
		a, b := view[i], view[j]
		switch order {
		case OldestFirst:
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.Before(b.Timestamp)
			}
		case AmountDescending:
			if !a.Amount.Equal(b.Amount) {
				return a.Amount.GreaterThan(b.Amount)
			}
		case AmountAscending:
			if !a.Amount.Equal(b.Amount) {
				return a.Amount.LessThan(b.Amount)
			}
		default: // NewestFirst
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.After(b.Timestamp)
			}
		}
		return a.ID < b.ID
	})
}

func sequence(view []models.Transaction) iter.Seq[models.Transaction] {
	return func(yield func(models.Transaction) bool) {
		for _, t := range view {
			if !yield(t) {
				return
			}
		}
	}
}
