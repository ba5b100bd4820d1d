package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// Snapshot reads every table, order and line item in one transaction so
// the three lists are mutually consistent.  Row versions are included;
// projectors use them to discard buffered events the snapshot already
// reflects.
func (s *Store) Snapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.Tables, err = NewTableRepo(s).ListTx(ctx, tx); err != nil {
			return err
		}
		if snap.Orders, err = NewOrderRepo(s).ListTx(ctx, tx, false); err != nil {
			return err
		}
		if snap.LineItems, err = NewLineItemRepo(s).ListTx(ctx, tx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	snap.TakenAt = time.Now().UTC()
	return snap, nil
}
