// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graphdb mirrors a concept table into Neo4j as (:Concept) nodes
// joined by [:DEPENDS_ON] relationships.
package graphdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/pdiddy/specgraph/pkg/types"
)

const (
	defaultUser    = "neo4j"
	defaultTimeout = 10 * time.Second

	// batchSize bounds the rows sent with one UNWIND statement.
	batchSize = 1000
)

var schemaStatements = []string{
	`CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`,
}

const (
	upsertConcepts = `
UNWIND $rows AS c
MERGE (n:Concept {id: c.id})
SET n += c`

	dropEdges = `
UNWIND $ids AS id
MATCH (:Concept {id: id})-[e:DEPENDS_ON]->()
DELETE e`

	upsertEdges = `
UNWIND $rows AS r
MATCH (a:Concept {id: r.src})
MATCH (b:Concept {id: r.dst})
MERGE (a)-[e:DEPENDS_ON]->(b)
SET e.run_id = r.run_id`
)

// Client writes dependency graphs to one Neo4j database.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	log      *zap.Logger
}

// Summary counts what one export wrote.
type Summary struct {
	Concepts int
	Edges    int
}

// Open connects to the database named by cfg and verifies connectivity.
// An empty URI disables the export: Open returns a nil Client and no error.
func Open(ctx context.Context, cfg types.GraphDBConfig, log *zap.Logger) (*Client, error) {
	if cfg.URI == "" {
		return nil, nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	user := cfg.User
	if user == "" {
		user = defaultUser
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graphdb: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphdb: verify connectivity: %w", err)
	}

	return &Client{driver: driver, database: cfg.Database, log: log.With(zap.String("client", "neo4j"))}, nil
}

// Close releases the driver. It is safe on a nil Client.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

// Export merges every concept of table and replaces the outgoing
// DEPENDS_ON edges of those concepts, all in one write transaction.
func (c *Client) Export(ctx context.Context, runID string, table types.ConceptTable) (Summary, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	for _, q := range schemaStatements {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			c.log.Warn("neo4j schema init failed (continuing)", zap.Error(err))
			continue
		}
		_, _ = res.Consume(ctx)
	}

	concepts := ConceptRows(runID, table)
	edges := EdgeRows(runID, table)
	ids := make([]any, 0, len(concepts))
	for _, row := range concepts {
		ids = append(ids, row["id"])
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, batch := range batches(concepts) {
			if err := run(ctx, tx, upsertConcepts, map[string]any{"rows": batch}); err != nil {
				return nil, fmt.Errorf("merging concepts: %w", err)
			}
		}
		for start := 0; start < len(ids); start += batchSize {
			end := min(start+batchSize, len(ids))
			if err := run(ctx, tx, dropEdges, map[string]any{"ids": ids[start:end]}); err != nil {
				return nil, fmt.Errorf("dropping stale edges: %w", err)
			}
		}
		for _, batch := range batches(edges) {
			if err := run(ctx, tx, upsertEdges, map[string]any{"rows": batch}); err != nil {
				return nil, fmt.Errorf("merging edges: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("graphdb export: %w", err)
	}

	c.log.Info("graph exported", zap.Int("concepts", len(concepts)), zap.Int("edges", len(edges)))
	return Summary{Concepts: len(concepts), Edges: len(edges)}, nil
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) error {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// ConceptRows builds the node properties sent for each concept, sorted by
// identifier. The definition text is left out; it lives in the store.
func ConceptRows(runID string, table types.ConceptTable) []map[string]any {
	rows := make([]map[string]any, 0, len(table))
	for _, id := range sortedIDs(table) {
		c := table[id]
		ctype := c.Classification
		if ctype == "" {
			ctype = types.ClassUnknown
		}
		rows = append(rows, map[string]any{
			"id":      id,
			"name":    c.Name,
			"defined": c.Defined,
			"ctype":   string(ctype),
			"run_id":  runID,
		})
	}
	return rows
}

// EdgeRows builds one row per dependency edge, sorted by source then target.
func EdgeRows(runID string, table types.ConceptTable) []map[string]any {
	var rows []map[string]any
	for _, id := range sortedIDs(table) {
		deps := append([]string(nil), table[id].Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			rows = append(rows, map[string]any{"src": id, "dst": dep, "run_id": runID})
		}
	}
	return rows
}

func batches(rows []map[string]any) [][]map[string]any {
	var out [][]map[string]any
	for start := 0; start < len(rows); start += batchSize {
		out = append(out, rows[start:min(start+batchSize, len(rows))])
	}
	return out
}

func sortedIDs(table types.ConceptTable) []string {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
