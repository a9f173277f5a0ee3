package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertBatchSize = 1000

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Nodes and
// edges are rows with jsonb attributes; saving a graph replaces it within a
// single transaction.
type GraphDBStorage struct {
	conn  pgxIConn
	close func()
}

// NewGraphDBStorageWithConnection creates a storage on an existing
// connection or pool. The schema must already be migrated.
func NewGraphDBStorageWithConnection(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn, close: func() {}}
}

// NewGraphDBStorage migrates the schema and opens a connection pool.
func NewGraphDBStorage(ctx context.Context, databaseURL string) (*GraphDBStorage, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &GraphDBStorage{conn: pool, close: pool.Close}, nil
}

// Pool exposes the underlying pool when the storage owns one.
func (s *GraphDBStorage) Pool() *pgxpool.Pool {
	pool, _ := s.conn.(*pgxpool.Pool)
	return pool
}

func (s *GraphDBStorage) SaveGraph(ctx context.Context, dataset string, g *graph.Graph) (err error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM graphs WHERE dataset = $1 AND name = $2`, dataset, g.Name); err != nil {
		return fmt.Errorf("failed to clear graph %s: %w", g.Name, err)
	}
	if _, err = tx.Exec(ctx,
		`INSERT INTO graphs (dataset, name, node_count, edge_count) VALUES ($1, $2, $3, $4)`,
		dataset, g.Name, g.NumberOfNodes(), g.NumberOfEdges(),
	); err != nil {
		return fmt.Errorf("failed to insert graph %s: %w", g.Name, err)
	}

	nodes := g.Nodes()
	err = store.ChunkRange(len(nodes), insertBatchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, id := range nodes[start:end] {
			attrs, _ := g.NodeAttributes(id)
			data, err := graph.MarshalAttributes(attrs)
			if err != nil {
				return err
			}
			batch.Queue(
				`INSERT INTO graph_nodes (dataset, name, node_id, attributes) VALUES ($1, $2, $3, $4::jsonb)`,
				dataset, g.Name, id, string(data),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert nodes of %s: %w", g.Name, err)
	}

	edges := g.Edges()
	err = store.ChunkRange(len(edges), insertBatchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, e := range edges[start:end] {
			attrs, _ := g.EdgeAttributes(e.U, e.V)
			data, err := graph.MarshalAttributes(attrs)
			if err != nil {
				return err
			}
			batch.Queue(
				`INSERT INTO graph_edges (dataset, name, source, target, attributes) VALUES ($1, $2, $3, $4, $5::jsonb)`,
				dataset, g.Name, e.U, e.V, string(data),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert edges of %s: %w", g.Name, err)
	}

	return tx.Commit(ctx)
}

func (s *GraphDBStorage) LoadGraph(ctx context.Context, dataset string, name string) (*graph.Graph, error) {
	var exists int
	err := s.conn.QueryRow(ctx, `SELECT 1 FROM graphs WHERE dataset = $1 AND name = $2`, dataset, name).Scan(&exists)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, fmt.Errorf("graph %s/%s: %w", dataset, name, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	g := graph.New(name)

	rows, err := s.conn.Query(ctx,
		`SELECT node_id, attributes::text FROM graph_nodes WHERE dataset = $1 AND name = $2`, dataset, name)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return nil, err
		}
		attrs, err := graph.UnmarshalAttributes([]byte(raw))
		if err != nil {
			rows.Close()
			return nil, err
		}
		g.AddNode(id, attrs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.conn.Query(ctx,
		`SELECT source, target, attributes::text FROM graph_edges WHERE dataset = $1 AND name = $2`, dataset, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u, v, raw string
		if err := rows.Scan(&u, &v, &raw); err != nil {
			return nil, err
		}
		attrs, err := graph.UnmarshalAttributes([]byte(raw))
		if err != nil {
			return nil, err
		}
		g.AddEdge(u, v, attrs)
	}
	return g, rows.Err()
}

func (s *GraphDBStorage) SaveManifest(ctx context.Context, dataset string, manifest []byte) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO manifests (dataset, body, saved_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (dataset) DO UPDATE SET body = EXCLUDED.body, saved_at = EXCLUDED.saved_at`,
		dataset, string(manifest),
	)
	return err
}

func (s *GraphDBStorage) LoadManifest(ctx context.Context, dataset string) ([]byte, error) {
	var body string
	err := s.conn.QueryRow(ctx, `SELECT body::text FROM manifests WHERE dataset = $1`, dataset).Scan(&body)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, fmt.Errorf("manifest %s: %w", dataset, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (s *GraphDBStorage) Close() error {
	s.close()
	return nil
}
