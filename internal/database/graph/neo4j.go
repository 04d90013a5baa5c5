package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jClient implements Client for Neo4j using Cypher.
type Neo4jClient struct {
	driver  neo4j.DriverWithContext
	dbName  string
	timeout time.Duration
}

// NewNeo4jClient creates a new Neo4j client and verifies connectivity.
// A zero timeout leaves individual queries unbounded.
func NewNeo4jClient(uri, username, password, dbName string, timeout time.Duration) (*Neo4jClient, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	return &Neo4jClient{
		driver:  driver,
		dbName:  dbName,
		timeout: timeout,
	}, nil
}

func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Execute runs a Cypher query in a read transaction.
func (c *Neo4jClient) Execute(ctx context.Context, query string) (ResultSet, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	rows, err := c.ExecuteCypher(ctx, query)
	if err != nil {
		return nil, newExecutionError(query, err)
	}
	return rows, nil
}
