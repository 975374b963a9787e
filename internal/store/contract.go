package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/eventlog"
	"github.com/couchcryptid/weather-oracle/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
)

var contractDDLs = []string{
	`CREATE TABLE IF NOT EXISTS contract_state (
		address TEXT PRIMARY KEY NOT NULL,
		owner TEXT NOT NULL,
		callback_authority TEXT NOT NULL,
		task_id TEXT NOT NULL,
		fee TEXT NOT NULL,
		nonce INTEGER NOT NULL,
		escrow TEXT NOT NULL,
		relay_cursor INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS pending_requests (
		id TEXT PRIMARY KEY NOT NULL,
		contract TEXT NOT NULL,
		nonce INTEGER NOT NULL,
		city TEXT NOT NULL,
		requester TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		task_id TEXT NOT NULL,
		fee TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS pending_requests_contract ON pending_requests (contract, nonce)`,

	`CREATE TABLE IF NOT EXISTS contract_events (
		contract TEXT NOT NULL,
		seq INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (contract, seq)
	)`,
}

const (
	upsertState = `INSERT INTO contract_state (address, owner, callback_authority, task_id, fee, nonce, escrow)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			owner = excluded.owner,
			callback_authority = excluded.callback_authority,
			task_id = excluded.task_id,
			fee = excluded.fee,
			nonce = excluded.nonce,
			escrow = excluded.escrow`
	selectState = `SELECT owner, callback_authority, task_id, fee, nonce, escrow FROM contract_state WHERE address = ?`

	insertPending = `INSERT INTO pending_requests (id, contract, nonce, city, requester, created_at, task_id, fee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	deletePending = `DELETE FROM pending_requests WHERE id = ? AND contract = ?`
	listPending   = `SELECT id, nonce, city, requester, created_at, task_id, fee FROM pending_requests
		WHERE contract = ? ORDER BY nonce`

	insertEvent = `INSERT INTO contract_events (contract, seq, event_type, payload) VALUES (?, ?, ?, ?)`
	listEvents  = `SELECT seq, event_type, payload FROM contract_events WHERE contract = ? ORDER BY seq`

	updateCursor = `UPDATE contract_state SET relay_cursor = ? WHERE address = ? AND relay_cursor < ?`
	selectCursor = `SELECT relay_cursor FROM contract_state WHERE address = ?`
)

// ContractStore keeps oracle contract state and the relay cursor in a SQLite
// database. It implements oracle.StateStore and relay.CursorStore.
type ContractStore struct {
	db *sql.DB

	stmtUpsertState   *sql.Stmt
	stmtSelectState   *sql.Stmt
	stmtInsertPending *sql.Stmt
	stmtDeletePending *sql.Stmt
	stmtListPending   *sql.Stmt
	stmtInsertEvent   *sql.Stmt
	stmtListEvents    *sql.Stmt
	stmtUpdateCursor  *sql.Stmt
	stmtSelectCursor  *sql.Stmt
}

// NewContractStore opens (creating if needed) the state database at path.
func NewContractStore(ctx context.Context, path string) (*ContractStore, error) {
	db, err := openDB(ctx, path, contractDDLs)
	if err != nil {
		return nil, fmt.Errorf("open contract db: %w", err)
	}

	s := &ContractStore{db: db}
	if err := s.initStatements(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *ContractStore) initStatements(ctx context.Context) error {
	for _, p := range []struct {
		stmt  **sql.Stmt
		query string
	}{
		{&s.stmtUpsertState, upsertState},
		{&s.stmtSelectState, selectState},
		{&s.stmtInsertPending, insertPending},
		{&s.stmtDeletePending, deletePending},
		{&s.stmtListPending, listPending},
		{&s.stmtInsertEvent, insertEvent},
		{&s.stmtListEvents, listEvents},
		{&s.stmtUpdateCursor, updateCursor},
		{&s.stmtSelectCursor, selectCursor},
	} {
		stmt, err := s.db.PrepareContext(ctx, p.query)
		if err != nil {
			return fmt.Errorf("prepare %q: %w", p.query, err)
		}
		*p.stmt = stmt
	}
	return nil
}

// Load reads the stored state of the contract at address.
func (s *ContractStore) Load(ctx context.Context, address common.Address) (oracle.State, bool, error) {
	var (
		st                                       oracle.State
		owner, authority, taskID, fee, escrowStr string
		nonce                                    int64
	)
	err := s.stmtSelectState.QueryRowContext(ctx, address.Hex()).
		Scan(&owner, &authority, &taskID, &fee, &nonce, &escrowStr)
	if errors.Is(err, sql.ErrNoRows) {
		return oracle.State{}, false, nil
	}
	if err != nil {
		return oracle.State{}, false, fmt.Errorf("read contract state: %w", err)
	}

	st.Owner = common.HexToAddress(owner)
	st.Config.CallbackAuthority = common.HexToAddress(authority)
	st.Config.TaskID = common.HexToHash(taskID)
	st.Nonce = uint64(nonce)
	if st.Config.Fee, err = parseAmount(fee); err != nil {
		return oracle.State{}, false, fmt.Errorf("read contract fee: %w", err)
	}
	if st.Escrow, err = parseAmount(escrowStr); err != nil {
		return oracle.State{}, false, fmt.Errorf("read contract escrow: %w", err)
	}

	if st.Pending, err = s.loadPending(ctx, address); err != nil {
		return oracle.State{}, false, err
	}
	if st.Events, err = s.loadEvents(ctx, address); err != nil {
		return oracle.State{}, false, err
	}
	return st, true, nil
}

func (s *ContractStore) loadPending(ctx context.Context, address common.Address) ([]domain.Request, error) {
	rows, err := s.stmtListPending.QueryContext(ctx, address.Hex())
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var out []domain.Request
	for rows.Next() {
		var (
			id, requester, taskID, fee string
			nonce                      int64
			r                          domain.Request
		)
		if err := rows.Scan(&id, &nonce, &r.City, &requester, &r.CreatedAt, &taskID, &fee); err != nil {
			return nil, fmt.Errorf("scan pending request: %w", err)
		}
		r.ID = common.HexToHash(id)
		r.Nonce = uint64(nonce)
		r.Requester = common.HexToAddress(requester)
		r.TaskID = common.HexToHash(taskID)
		if r.Fee, err = parseAmount(fee); err != nil {
			return nil, fmt.Errorf("pending request %s fee: %w", id, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ContractStore) loadEvents(ctx context.Context, address common.Address) ([]eventlog.Entry, error) {
	rows, err := s.stmtListEvents.QueryContext(ctx, address.Hex())
	if err != nil {
		return nil, fmt.Errorf("list contract events: %w", err)
	}
	defer rows.Close()

	var out []eventlog.Entry
	for rows.Next() {
		var (
			seq       int64
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&seq, &eventType, &payload); err != nil {
			return nil, fmt.Errorf("scan contract event: %w", err)
		}
		event, err := domain.ParseRawEvent(domain.RawEvent{
			Value:   payload,
			Headers: map[string]string{domain.HeaderEventType: eventType},
		})
		if err != nil {
			return nil, fmt.Errorf("contract event %d: %w", seq, err)
		}
		out = append(out, eventlog.Entry{Seq: uint64(seq), Event: event})
	}
	return out, rows.Err()
}

// Commit applies change in a single transaction.
func (s *ContractStore) Commit(ctx context.Context, address common.Address, change oracle.Change) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	contract := address.Hex()
	if _, err = tx.StmtContext(ctx, s.stmtUpsertState).ExecContext(ctx,
		contract,
		change.Owner.Hex(),
		change.Config.CallbackAuthority.Hex(),
		change.Config.TaskID.Hex(),
		formatAmount(change.Config.Fee),
		int64(change.Nonce),
		formatAmount(change.Escrow),
	); err != nil {
		return fmt.Errorf("write contract state: %w", err)
	}

	if r := change.Insert; r != nil {
		if _, err = tx.StmtContext(ctx, s.stmtInsertPending).ExecContext(ctx,
			r.ID.Hex(), contract, int64(r.Nonce), r.City, r.Requester.Hex(), r.CreatedAt, r.TaskID.Hex(), formatAmount(r.Fee),
		); err != nil {
			return fmt.Errorf("insert pending request %s: %w", r.ID.Hex(), err)
		}
	}

	if id := change.Remove; id != nil {
		var res sql.Result
		if res, err = tx.StmtContext(ctx, s.stmtDeletePending).ExecContext(ctx, id.Hex(), contract); err != nil {
			return fmt.Errorf("delete pending request %s: %w", id.Hex(), err)
		}
		var n int64
		if n, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("delete pending request %s: %w", id.Hex(), err)
		}
		if n != 1 {
			return fmt.Errorf("delete pending request %s: not stored", id.Hex())
		}
	}

	if e := change.Event; e != nil {
		var out domain.OutputEvent
		if out, err = domain.SerializeEvent(e.Event, e.Seq, address); err != nil {
			return err
		}
		if _, err = tx.StmtContext(ctx, s.stmtInsertEvent).ExecContext(ctx,
			contract, int64(e.Seq), e.Event.EventName(), out.Value,
		); err != nil {
			return fmt.Errorf("insert contract event %d: %w", e.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SaveCursor records that the relay has published every event up to seq.
// The stored cursor never moves backwards.
func (s *ContractStore) SaveCursor(ctx context.Context, address common.Address, seq uint64) error {
	if _, err := s.stmtUpdateCursor.ExecContext(ctx, int64(seq), address.Hex(), int64(seq)); err != nil {
		return fmt.Errorf("save relay cursor: %w", err)
	}
	return nil
}

// Cursor returns the last saved relay cursor, or zero if none was saved.
func (s *ContractStore) Cursor(ctx context.Context, address common.Address) (uint64, error) {
	var seq int64
	err := s.stmtSelectCursor.QueryRowContext(ctx, address.Hex()).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read relay cursor: %w", err)
	}
	return uint64(seq), nil
}

// Close releases statements and the database handle.
func (s *ContractStore) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.stmtUpsertState, s.stmtSelectState,
		s.stmtInsertPending, s.stmtDeletePending, s.stmtListPending,
		s.stmtInsertEvent, s.stmtListEvents,
		s.stmtUpdateCursor, s.stmtSelectCursor,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}

// Amounts are stored as base-10 strings; they exceed SQLite's 64-bit integers.
func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
