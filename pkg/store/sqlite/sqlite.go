package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SQLiteStorage keeps graphs in a local SQLite file using the same
// relational layout as the Postgres backend.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates the database at path and applies the
// schema.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) SaveGraph(ctx context.Context, dataset string, g *graph.Graph) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM graphs WHERE dataset = ? AND name = ?`, dataset, g.Name); err != nil {
		return fmt.Errorf("failed to clear graph %s: %w", g.Name, err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO graphs (dataset, name, node_count, edge_count) VALUES (?, ?, ?, ?)`,
		dataset, g.Name, g.NumberOfNodes(), g.NumberOfEdges(),
	); err != nil {
		return fmt.Errorf("failed to insert graph %s: %w", g.Name, err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `INSERT INTO graph_nodes (dataset, name, node_id, attributes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()
	for _, id := range g.Nodes() {
		attrs, _ := g.NodeAttributes(id)
		var data []byte
		if data, err = graph.MarshalAttributes(attrs); err != nil {
			return err
		}
		if _, err = nodeStmt.ExecContext(ctx, dataset, g.Name, id, string(data)); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", id, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO graph_edges (dataset, name, source, target, attributes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()
	for _, e := range g.Edges() {
		attrs, _ := g.EdgeAttributes(e.U, e.V)
		var data []byte
		if data, err = graph.MarshalAttributes(attrs); err != nil {
			return err
		}
		if _, err = edgeStmt.ExecContext(ctx, dataset, g.Name, e.U, e.V, string(data)); err != nil {
			return fmt.Errorf("failed to insert edge %s-%s: %w", e.U, e.V, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) LoadGraph(ctx context.Context, dataset string, name string) (*graph.Graph, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM graphs WHERE dataset = ? AND name = ?`, dataset, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("graph %s/%s: %w", dataset, name, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	g := graph.New(name)
	if err := s.each(ctx, `SELECT node_id, attributes FROM graph_nodes WHERE dataset = ? AND name = ?`,
		[]any{dataset, name}, 2, func(cols []string, attrs graph.Attributes) {
			g.AddNode(cols[0], attrs)
		}); err != nil {
		return nil, err
	}
	if err := s.each(ctx, `SELECT source, target, attributes FROM graph_edges WHERE dataset = ? AND name = ?`,
		[]any{dataset, name}, 3, func(cols []string, attrs graph.Attributes) {
			g.AddEdge(cols[0], cols[1], attrs)
		}); err != nil {
		return nil, err
	}
	return g, nil
}

// each scans rows of n text columns where the last one holds attributes.
func (s *SQLiteStorage) each(
	ctx context.Context,
	query string,
	args []any,
	n int,
	fn func(cols []string, attrs graph.Attributes),
) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		cols := make([]string, n)
		ptrs := make([]any, n)
		for i := range cols {
			ptrs[i] = &cols[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		attrs, err := graph.UnmarshalAttributes([]byte(cols[n-1]))
		if err != nil {
			return err
		}
		fn(cols[:n-1], attrs)
	}
	return rows.Err()
}

func (s *SQLiteStorage) SaveManifest(ctx context.Context, dataset string, manifest []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manifests (dataset, body) VALUES (?, ?)
		ON CONFLICT (dataset) DO UPDATE SET body = excluded.body,
			saved_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		dataset, string(manifest),
	)
	return err
}

func (s *SQLiteStorage) LoadManifest(ctx context.Context, dataset string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM manifests WHERE dataset = ?`, dataset).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manifest %s: %w", dataset, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
