package subscribe

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/mz-tools/mzprof/internal/errors"
)

// ScanFunc scans the current row of a SUBSCRIBE result set into a Raw event.
// The progress columns may be NULL on data rows and the data columns are NULL
// on progress rows; implementations live next to the relation definitions.
type ScanFunc[R any] func(rows pgx.Rows) (Raw[R], error)

// Stream is a Reader over a live SUBSCRIBE query on a dedicated connection.
//
// Cancellation flows through the context the query was issued with: the
// caller of NewStream passes the same context to Next, and canceling it
// aborts the in-flight receive. Close must still be called to release the
// connection.
var _ Reader[struct{}] = (*Stream[struct{}])(nil)

type Stream[R any] struct {
	rows   pgx.Rows
	conn   *pgx.Conn
	scan   ScanFunc[R]
	batch  batcher[R]
	logger zerolog.Logger
	closed bool
}

// NewStream wraps an issued SUBSCRIBE query. The stream takes ownership of
// both the result set and the connection.
func NewStream[R any](conn *pgx.Conn, rows pgx.Rows, scan ScanFunc[R], logger zerolog.Logger) *Stream[R] {
	return &Stream[R]{
		rows:   rows,
		conn:   conn,
		scan:   scan,
		batch:  newBatcher[R](),
		logger: logger,
	}
}

// Next implements Reader.
func (s *Stream[R]) Next(ctx context.Context) (Batch[R], error) {
	for {
		if err := ctx.Err(); err != nil {
			return Batch[R]{}, err
		}

		if !s.rows.Next() {
			if err := ctx.Err(); err != nil {
				return Batch[R]{}, err
			}
			if err := s.rows.Err(); err != nil {
				return Batch[R]{}, errors.Transport(err)
			}
			// A SUBSCRIBE never completes on its own.
			return Batch[R]{}, errors.Transportf("subscription ended unexpectedly")
		}

		raw, err := s.scan(s.rows)
		if err != nil {
			return Batch[R]{}, errors.Transport(err)
		}

		batch, done, err := s.batch.absorb(raw)
		if err != nil {
			// Out-of-order timestamps mean the protocol desynchronized.
			return Batch[R]{}, errors.Transport(err)
		}
		if done {
			return batch, nil
		}
	}
}

// Close implements Reader. It ends the subscription and releases the
// connection so no live query leaks on the remote system.
func (s *Stream[R]) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.rows.Close()
	if err := s.conn.Close(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("closing subscription connection")
		return err
	}
	return nil
}
