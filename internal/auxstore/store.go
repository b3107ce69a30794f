// Package auxstore keeps functions the device could not store, so they can
// still be listed and triggered from the host.
package auxstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/ir"
)

// Store is a SQLite-backed table of functions keyed by (remote, name).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a store on an opened lookind database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save stores fn for remote uuid, replacing a function with the same name.
// Functions without local commands are refused since there would be nothing
// to trigger.
func (s *Store) Save(uuid string, fn *ir.Function) error {
	if uuid == "" {
		return fmt.Errorf("remote uuid is required")
	}
	if !fn.HasCommands() {
		return fmt.Errorf("function %q has no local commands", fn.Name())
	}

	data, err := json.Marshal(fn)
	if err != nil {
		return fmt.Errorf("failed to marshal function: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO aux_functions (remote_uuid, name, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(remote_uuid, name) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, uuid, fn.Name(), string(data), s.now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save function %s/%s: %w", uuid, fn.Name(), err)
	}
	return nil
}

// Load returns the stored functions of a remote ordered by name. Rows that no
// longer decode are logged and skipped.
func (s *Store) Load(uuid string) ([]*ir.Function, error) {
	rows, err := s.db.Query(`
		SELECT name, payload FROM aux_functions
		WHERE remote_uuid = ?
		ORDER BY name
	`, uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to load functions of %s: %w", uuid, err)
	}
	defer rows.Close()

	var out []*ir.Function
	for rows.Next() {
		var name, payload string
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, err
		}
		fn, err := ir.UnmarshalFunction([]byte(payload))
		if err != nil {
			log.Warn().Err(err).Str("uuid", uuid).Str("function", name).Msg("Skipping unreadable aux function")
			continue
		}
		out = append(out, fn)
	}
	return out, rows.Err()
}

// Delete removes one function. It reports whether a row existed.
func (s *Store) Delete(uuid, name string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM aux_functions WHERE remote_uuid = ? AND name = ?`, uuid, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete function %s/%s: %w", uuid, name, err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// DeleteRemote removes every function of a remote.
func (s *Store) DeleteRemote(uuid string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM aux_functions WHERE remote_uuid = ?`, uuid)
	if err != nil {
		return 0, fmt.Errorf("failed to delete functions of %s: %w", uuid, err)
	}
	return result.RowsAffected()
}

// Document is the export form of the whole store.
type Document struct {
	Remotes map[string]RemoteDocument `json:"remotes"`
}

// RemoteDocument holds the functions of one remote keyed by name.
type RemoteDocument struct {
	Functions map[string]json.RawMessage `json:"functions"`
}

// Export dumps every stored function for manual recovery.
func (s *Store) Export() (*Document, error) {
	rows, err := s.db.Query(`SELECT remote_uuid, name, payload FROM aux_functions ORDER BY remote_uuid, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to export functions: %w", err)
	}
	defer rows.Close()

	doc := &Document{Remotes: make(map[string]RemoteDocument)}
	for rows.Next() {
		var uuid, name, payload string
		if err := rows.Scan(&uuid, &name, &payload); err != nil {
			return nil, err
		}
		remote, ok := doc.Remotes[uuid]
		if !ok {
			remote = RemoteDocument{Functions: make(map[string]json.RawMessage)}
			doc.Remotes[uuid] = remote
		}
		remote.Functions[name] = json.RawMessage(payload)
	}
	return doc, rows.Err()
}

// Import merges an exported document back, overwriting functions with the
// same name. It returns the number of functions written.
func (s *Store) Import(doc *Document) (int, error) {
	n := 0
	for uuid, remote := range doc.Remotes {
		for name, raw := range remote.Functions {
			fn, err := ir.UnmarshalFunction(raw)
			if err != nil {
				return n, fmt.Errorf("function %s/%s: %w", uuid, name, err)
			}
			if fn.Name() != name {
				return n, fmt.Errorf("function %s/%s: payload is named %q", uuid, name, fn.Name())
			}
			if err := s.Save(uuid, fn); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
