// Package graphs answers whether a room key names a known graph.
package graphs

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/config"
)

// Directory reports whether a graph exists.
type Directory interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// AllowAll accepts every key. Used when no graph database is configured.
type AllowAll struct{}

func (AllowAll) Exists(context.Context, string) (bool, error) { return true, nil }

// Neo4jDirectory looks graphs up as nodes carrying a configured label and
// an id property equal to the room key.
type Neo4jDirectory struct {
	driver neo4j.DriverWithContext
	query  string
	log    *zap.Logger
}

// NewNeo4jDirectory wraps an open driver. label is validated as
// alphanumeric by config, so it is safe to splice into the query.
func NewNeo4jDirectory(driver neo4j.DriverWithContext, label string, log *zap.Logger) *Neo4jDirectory {
	return &Neo4jDirectory{
		driver: driver,
		query:  fmt.Sprintf("MATCH (g:%s {id: $id}) RETURN g.id AS id LIMIT 1", label),
		log:    log.Named("graphs"),
	}
}

func (d *Neo4jDirectory) Exists(ctx context.Context, key string) (bool, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, d.query, map[string]any{"id": key})
	if err != nil {
		return false, fmt.Errorf("lookup graph %q: %w", key, err)
	}
	found := result.Next(ctx)
	if err := result.Err(); err != nil {
		return false, fmt.Errorf("lookup graph %q: %w", key, err)
	}
	d.log.Debug("graph lookup", zap.String("key", key), zap.Bool("found", found))
	return found, nil
}

// Open returns the directory selected by cfg and a close function. With no
// NEO4J_URI every key is accepted.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (Directory, func(context.Context) error, error) {
	if !cfg.GraphCheckEnabled() {
		log.Info("graph check disabled, accepting every room key")
		return AllowAll{}, func(context.Context) error { return nil }, nil
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	log.Info("graph check enabled", zap.String("uri", cfg.Neo4jURI), zap.String("label", cfg.GraphLabel))
	return NewNeo4jDirectory(driver, cfg.GraphLabel, log), driver.Close, nil
}
