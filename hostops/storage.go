package hostops

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/tetratelabs/wazero/api"
	_ "modernc.org/sqlite"

	"github.com/glyphterm/wasm-bridge/bridge"
	"github.com/glyphterm/wasm-bridge/errors"
	"github.com/glyphterm/wasm-bridge/handle"
)

// Storage is a persistent string key/value store with local-storage
// shaped operations: get_item, set_item, remove_item. Values returned to
// the module are string handles; the undefined handle means absent.
type Storage struct {
	db *sql.DB
}

// OpenStorage opens or creates the backing database. Use ":memory:" for
// an ephemeral store.
func OpenStorage(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindStorage, err, "open store")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.PhaseHost, errors.KindStorage, err, "init store")
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Namespace() string {
	return "storage"
}

func (s *Storage) Functions() []bridge.HostFunc {
	i32 := api.ValueTypeI32
	return []bridge.HostFunc{
		{Name: "get_item", Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: s.getItem},
		{Name: "set_item", Params: []api.ValueType{i32, i32, i32, i32}, Fn: s.setItem},
		{Name: "remove_item", Params: []api.ValueType{i32, i32}, Fn: s.removeItem},
	}
}

func (s *Storage) getItem(ctx context.Context, call *bridge.Call) error {
	key, err := call.Instance.DecodeString(call.U32(0), call.U32(1))
	if err != nil {
		return err
	}
	var value string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		call.SetU32(0, uint32(handle.Undefined))
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindStorage, err, "get "+key)
	}
	ref, err := call.Instance.Table().Store(value)
	if err != nil {
		return err
	}
	call.SetU32(0, uint32(ref))
	return nil
}

func (s *Storage) setItem(ctx context.Context, call *bridge.Call) error {
	key, err := call.Instance.DecodeString(call.U32(0), call.U32(1))
	if err != nil {
		return err
	}
	value, err := call.Instance.DecodeString(call.U32(2), call.U32(3))
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key, value); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindStorage, err, "set "+key)
	}
	return nil
}

func (s *Storage) removeItem(ctx context.Context, call *bridge.Call) error {
	key, err := call.Instance.DecodeString(call.U32(0), call.U32(1))
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindStorage, err, "remove "+key)
	}
	return nil
}

var _ bridge.Host = (*Storage)(nil)
