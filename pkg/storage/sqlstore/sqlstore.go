// Package sqlstore implements ntree.Store on database/sql. It is shared by
// the sqlite and postgres drivers, which differ only in placeholders and
// column types.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// Dialect selects the SQL flavour.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ntree.Store over a *sql.DB or, inside Atomic, a *sql.Tx.
type Store struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	tx      *sql.Tx
}

// New wraps db and creates the schema if it does not exist yet.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, q: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	idType := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == Postgres {
		idType = "BIGSERIAL PRIMARY KEY"
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS ntree_node (
			id ` + idType + `,
			parent_id BIGINT NOT NULL DEFAULT 0,
			name TEXT NOT NULL,
			depth INTEGER NOT NULL DEFAULT 0,
			nleft INTEGER NOT NULL DEFAULT 0,
			nright INTEGER NOT NULL DEFAULT 0,
			is_root_category BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ntree_node_parent ON ntree_node(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ntree_node_nleft ON ntree_node(nleft)`,
		`CREATE TABLE IF NOT EXISTS ntree_node_tenant (
			node_id BIGINT NOT NULL,
			tenant_id BIGINT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			PRIMARY KEY (node_id, tenant_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ntree_node_tenant_tenant ON ntree_node_tenant(tenant_id)`,
		`CREATE TABLE IF NOT EXISTS ntree_tenant (
			id ` + idType + `,
			name TEXT NOT NULL,
			root_id BIGINT NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

const nodeColumns = "id, parent_id, name, depth, nleft, nright, is_root_category"

// LoadAll returns every node ordered by id.
func (s *Store) LoadAll(ctx context.Context) ([]*ntree.Node, error) {
	rows, err := s.query(ctx, "SELECT "+nodeColumns+" FROM ntree_node ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// LoadNode returns a single node.
func (s *Store) LoadNode(ctx context.Context, id ntree.NodeID) (*ntree.Node, error) {
	row := s.queryRow(ctx, "SELECT "+nodeColumns+" FROM ntree_node WHERE id = ?", int64(id))

	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ntree.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load node %d: %w", id, err)
	}
	return n, nil
}

// LoadPositions returns the rows of tenant ordered by node id.
func (s *Store) LoadPositions(ctx context.Context, tenant ntree.TenantID) ([]ntree.TenantPosition, error) {
	rows, err := s.query(ctx,
		"SELECT node_id, tenant_id, position, active FROM ntree_node_tenant WHERE tenant_id = ? ORDER BY node_id",
		int64(tenant),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// LoadNodePositions returns the rows of one node ordered by tenant id.
func (s *Store) LoadNodePositions(ctx context.Context, id ntree.NodeID) ([]ntree.TenantPosition, error) {
	rows, err := s.query(ctx,
		"SELECT node_id, tenant_id, position, active FROM ntree_node_tenant WHERE node_id = ? ORDER BY tenant_id",
		int64(id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// LoadTenants returns every tenant ordered by id.
func (s *Store) LoadTenants(ctx context.Context) ([]ntree.Tenant, error) {
	rows, err := s.query(ctx, "SELECT id, name, root_id FROM ntree_tenant ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var out []ntree.Tenant
	for rows.Next() {
		var (
			t          ntree.Tenant
			id, rootID int64
		)
		if err := rows.Scan(&id, &t.Name, &rootID); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		t.ID = ntree.TenantID(id)
		t.RootID = ntree.NodeID(rootID)
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveNode inserts or updates a node, assigning an id when it has none.
func (s *Store) SaveNode(ctx context.Context, node *ntree.Node) error {
	if node == nil {
		return errors.New("cannot store nil node")
	}

	if node.ID == 0 {
		var id int64
		err := s.queryRow(ctx,
			`INSERT INTO ntree_node (parent_id, name, depth, nleft, nright, is_root_category)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
			int64(node.ParentID), node.Name, node.Depth, node.Left, node.Right, node.IsRootCategory,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert node: %w", err)
		}
		node.ID = ntree.NodeID(id)
		return nil
	}

	_, err := s.exec(ctx,
		`INSERT INTO ntree_node (id, parent_id, name, depth, nleft, nright, is_root_category)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			depth = excluded.depth,
			nleft = excluded.nleft,
			nright = excluded.nright,
			is_root_category = excluded.is_root_category`,
		int64(node.ID), int64(node.ParentID), node.Name, node.Depth, node.Left, node.Right, node.IsRootCategory,
	)
	if err != nil {
		return fmt.Errorf("failed to save node %d: %w", node.ID, err)
	}
	return nil
}

// SavePosition inserts or replaces a tenant row.
func (s *Store) SavePosition(ctx context.Context, pos ntree.TenantPosition) error {
	_, err := s.exec(ctx,
		`INSERT INTO ntree_node_tenant (node_id, tenant_id, position, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (node_id, tenant_id) DO UPDATE SET
			position = excluded.position,
			active = excluded.active`,
		int64(pos.NodeID), int64(pos.TenantID), pos.Position, pos.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save position of node %d in tenant %d: %w", pos.NodeID, pos.TenantID, err)
	}
	return nil
}

// SaveTenant inserts or updates a tenant, assigning an id when it has none.
func (s *Store) SaveTenant(ctx context.Context, tenant *ntree.Tenant) error {
	if tenant == nil {
		return errors.New("cannot store nil tenant")
	}

	if tenant.ID == 0 {
		var id int64
		err := s.queryRow(ctx,
			"INSERT INTO ntree_tenant (name, root_id) VALUES (?, ?) RETURNING id",
			tenant.Name, int64(tenant.RootID),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert tenant: %w", err)
		}
		tenant.ID = ntree.TenantID(id)
		return nil
	}

	_, err := s.exec(ctx,
		`INSERT INTO ntree_tenant (id, name, root_id) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, root_id = excluded.root_id`,
		int64(tenant.ID), tenant.Name, int64(tenant.RootID),
	)
	if err != nil {
		return fmt.Errorf("failed to save tenant %d: %w", tenant.ID, err)
	}
	return nil
}

// DeleteNode removes a node.
func (s *Store) DeleteNode(ctx context.Context, id ntree.NodeID) error {
	res, err := s.exec(ctx, "DELETE FROM ntree_node WHERE id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete node %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ntree.NotFoundError{ID: id}
	}
	return nil
}

// DeletePosition removes one tenant row.
func (s *Store) DeletePosition(ctx context.Context, node ntree.NodeID, tenant ntree.TenantID) error {
	_, err := s.exec(ctx,
		"DELETE FROM ntree_node_tenant WHERE node_id = ? AND tenant_id = ?",
		int64(node), int64(tenant),
	)
	if err != nil {
		return fmt.Errorf("failed to delete position of node %d in tenant %d: %w", node, tenant, err)
	}
	return nil
}

// CommitIntervals writes every interval in one transaction.
func (s *Store) CommitIntervals(ctx context.Context, intervals []ntree.Interval) error {
	return s.Atomic(ctx, func(ctx context.Context, tx ntree.Store) error {
		st, ok := tx.(*Store)
		if !ok {
			return fmt.Errorf("unexpected transaction type %T", tx)
		}

		stmt, err := st.tx.PrepareContext(ctx, st.rebind("UPDATE ntree_node SET nleft = ?, nright = ?, depth = ? WHERE id = ?"))
		if err != nil {
			return fmt.Errorf("failed to prepare interval update: %w", err)
		}
		defer stmt.Close()

		for _, iv := range intervals {
			res, err := stmt.ExecContext(ctx, iv.Left, iv.Right, iv.Depth, int64(iv.ID))
			if err != nil {
				return fmt.Errorf("failed to update interval of node %d: %w", iv.ID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return ntree.NotFoundError{ID: iv.ID}
			}
		}
		return nil
	})
}

// Atomic runs fn inside a database transaction. Calls nested inside a
// transaction join it.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ntree.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, &Store{db: s.db, q: tx, dialect: s.dialect, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.tx != nil {
		return errors.New("cannot close a transaction view")
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*ntree.Node, error) {
	var (
		n            ntree.Node
		id, parentID int64
	)
	if err := row.Scan(&id, &parentID, &n.Name, &n.Depth, &n.Left, &n.Right, &n.IsRootCategory); err != nil {
		return nil, err
	}
	n.ID = ntree.NodeID(id)
	n.ParentID = ntree.NodeID(parentID)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*ntree.Node, error) {
	var out []*ntree.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanPositions(rows *sql.Rows) ([]ntree.TenantPosition, error) {
	var out []ntree.TenantPosition
	for rows.Next() {
		var (
			p            ntree.TenantPosition
			node, tenant int64
		)
		if err := rows.Scan(&node, &tenant, &p.Position, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.NodeID = ntree.NodeID(node)
		p.TenantID = ntree.TenantID(tenant)
		out = append(out, p)
	}
	return out, rows.Err()
}
