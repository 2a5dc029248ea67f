// Package memory is an in-process implementation of the repositories.
//
// All writes are serialized by one mutex. A transaction holds the write lock
// for its whole duration and works on a copy of the state that replaces the
// live state only when the transaction function returns nil.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/auditrecords"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/documents"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/grants"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/sharetokens"
)

var errTxDone = errors.New("memory: transaction has already been committed or rolled back")

type grantKey struct {
	documentID string
	userID     string
}

type state struct {
	documents   map[string]models.Document
	grants      map[grantKey]models.PermissionGrant
	tokens      map[string]models.ShareToken
	tokenByHash map[string]string
	audit       []models.AuditRecord
	auditByID   map[string]int
}

func newState() *state {
	return &state{
		documents:   map[string]models.Document{},
		grants:      map[grantKey]models.PermissionGrant{},
		tokens:      map[string]models.ShareToken{},
		tokenByHash: map[string]string{},
		auditByID:   map[string]int{},
	}
}

func (s *state) clone() *state {
	c := &state{
		documents:   make(map[string]models.Document, len(s.documents)),
		grants:      make(map[grantKey]models.PermissionGrant, len(s.grants)),
		tokens:      make(map[string]models.ShareToken, len(s.tokens)),
		tokenByHash: make(map[string]string, len(s.tokenByHash)),
		audit:       make([]models.AuditRecord, len(s.audit), len(s.audit)+8),
		auditByID:   make(map[string]int, len(s.auditByID)),
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.grants {
		c.grants[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.tokenByHash {
		c.tokenByHash[k] = v
	}
	copy(c.audit, s.audit)
	for k, v := range s.auditByID {
		c.auditByID[k] = v
	}
	return c
}

// Store owns the in-memory state. Its repository accessors operate outside
// any transaction.
type Store struct {
	mu    sync.RWMutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// txState is shared by every repository handed out by one transaction.
type txState struct {
	st   *state
	done bool
}

// view routes repository calls either to the live state under the store lock
// or to a transaction's private copy, which is already protected by the lock
// the transaction holds.
type view struct {
	s  *Store
	tx *txState
}

func (v view) read(fn func(*state) error) error {
	if v.tx != nil {
		if v.tx.done {
			return errTxDone
		}
		return fn(v.tx.st)
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return fn(v.s.state)
}

// write runs fn against the state. fn must validate before it mutates so a
// failed call leaves the state untouched.
func (v view) write(fn func(*state) error) error {
	if v.tx != nil {
		if v.tx.done {
			return errTxDone
		}
		return fn(v.tx.st)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.state)
}

func (s *Store) Documents() documents.Repository {
	return &DocumentRepository{v: view{s: s}}
}

func (s *Store) Grants() grants.Repository {
	return &GrantRepository{v: view{s: s}}
}

func (s *Store) ShareTokens() sharetokens.Repository {
	return &ShareTokenRepository{v: view{s: s}}
}

func (s *Store) AuditRecords() auditrecords.Repository {
	return &AuditRecordRepository{v: view{s: s}}
}

// Tx exposes repositories bound to one transaction. They must not be used
// after the transaction function returns.
type Tx struct {
	v view
}

func (t *Tx) Documents() documents.Repository {
	return &DocumentRepository{v: t.v}
}

func (t *Tx) Grants() grants.Repository {
	return &GrantRepository{v: t.v}
}

func (t *Tx) ShareTokens() sharetokens.Repository {
	return &ShareTokenRepository{v: t.v}
}

func (t *Tx) AuditRecords() auditrecords.Repository {
	return &AuditRecordRepository{v: t.v}
}

// WithTx runs fn in a transaction. Calls on the Store's own repositories from
// inside fn block until the transaction ends, so fn must only use tx.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	ts := &txState{st: s.state.clone()}
	defer func() { ts.done = true }()

	if err := fn(ctx, &Tx{v: view{s: s, tx: ts}}); err != nil {
		return err
	}
	s.state = ts.st
	return nil
}
