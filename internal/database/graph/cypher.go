package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ExecuteCypher executes a raw Cypher query and returns the results.
// Driver errors are returned unwrapped so their text reaches the caller intact.
func (c *Neo4jClient) ExecuteCypher(ctx context.Context, query string) (ResultSet, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.dbName,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		rows := make(ResultSet, 0, len(records))
		for _, record := range records {
			rowMap := make(Row, len(record.Keys))
			for i, key := range record.Keys {
				rowMap[key] = convertNeo4jValue(record.Values[i])
			}
			rows = append(rows, rowMap)
		}

		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(ResultSet), nil
}

// convertNeo4jValue converts Neo4j types to Go native types.
func convertNeo4jValue(val any) any {
	switch v := val.(type) {
	case neo4j.Node:
		return map[string]any{
			"labels":     v.Labels,
			"properties": v.Props,
			"id":         v.ElementId,
		}
	case neo4j.Relationship:
		return map[string]any{
			"type":       v.Type,
			"properties": v.Props,
			"startNode":  v.StartElementId,
			"endNode":    v.EndElementId,
		}
	case neo4j.Path:
		nodes := make([]any, len(v.Nodes))
		for i, n := range v.Nodes {
			nodes[i] = convertNeo4jValue(n)
		}
		rels := make([]any, len(v.Relationships))
		for i, r := range v.Relationships {
			rels[i] = convertNeo4jValue(r)
		}
		return map[string]any{
			"nodes":         nodes,
			"relationships": rels,
		}
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = convertNeo4jValue(item)
		}
		return result
	case map[string]any:
		result := make(map[string]any)
		for k, v := range v {
			result[k] = convertNeo4jValue(v)
		}
		return result
	default:
		return v
	}
}
