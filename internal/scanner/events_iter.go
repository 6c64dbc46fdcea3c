package scanner

import (
	"database/sql"

	"github.com/paperindex/docindex/internal/store"
)

const eventsBatchSize = 45

// Events is a forward-only, consume-once iterator over a scan's journal
// rows. Rows are fetched in batches; a batch is deleted from the journal in
// the same transaction that fetches the next one, once Next has returned
// all of it. A partially-consumed Events left for garbage collection
// therefore resumes on the next open: its current batch and every later
// row remain in the table.
type Events struct {
	pool    *store.Pool
	buf     []Event
	pos     int
	drained bool
}

func newEvents(pool *store.Pool) *Events {
	return &Events{pool: pool}
}

// Next advances to and returns the next event, or (Event{}, false) once the
// journal is exhausted.
func (e *Events) Next() (Event, bool) {
	if e.pos >= len(e.buf) {
		if e.drained {
			return Event{}, false
		}
		if err := e.fetch(); err != nil {
			e.drained = true
			return Event{}, false
		}
		if len(e.buf) == 0 {
			e.drained = true
			return Event{}, false
		}
	}
	ev := e.buf[e.pos]
	e.pos++
	return ev, true
}

func (e *Events) fetch() error {
	consumed := make([]int64, 0, len(e.buf))
	for _, ev := range e.buf {
		consumed = append(consumed, ev.ID)
	}
	e.buf = e.buf[:0]
	e.pos = 0

	return e.pool.WithTx(func(tx *sql.Tx) error {
		for _, id := range consumed {
			if _, err := tx.Exec(`DELETE FROM events WHERE id = ?`, id); err != nil {
				return err
			}
		}

		rows, err := tx.Query(
			`SELECT id, kind, target, path, scope, mtime FROM events ORDER BY id LIMIT ?`,
			eventsBatchSize,
		)
		if err != nil {
			return err
		}
		for rows.Next() {
			var ev Event
			var kind, target int
			if err := rows.Scan(&ev.ID, &kind, &target, &ev.Path, &ev.Scope, &ev.Mtime); err != nil {
				rows.Close()
				return err
			}
			ev.Kind = EventKind(kind)
			ev.Target = EventTarget(target)
			e.buf = append(e.buf, ev)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()
		return nil
	})
}
