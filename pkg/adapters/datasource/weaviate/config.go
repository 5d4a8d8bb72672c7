// Package weaviate registers Weaviate as a connection type, alongside the
// SQL/Mongo drivers, so the same schema-discovery machinery that inspects a
// customer's relational database can inspect their vector store: a class
// stands in for a table, and its properties stand in for columns.
package weaviate

import "fmt"

// Config contains Weaviate-specific connection options.
type Config struct {
	URL    string // host[:port], no scheme
	APIKey string
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("url is required")
	}
	cfg.URL = url

	if apiKey, ok := config["api_key"].(string); ok {
		cfg.APIKey = apiKey
	}

	return cfg, nil
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}
