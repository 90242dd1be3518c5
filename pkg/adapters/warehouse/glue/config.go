package glue

import (
	"fmt"
	"strings"
)

// DefaultCatalogName is used as the database-level name when no catalog
// ID is configured, matching the name Athena shows for the account catalog.
const DefaultCatalogName = "AwsDataCatalog"

// Config selects the Glue Data Catalog to read.
type Config struct {
	Profile   string
	Region    string
	CatalogID string
	// GlueDatabase restricts collection to one Glue database when set.
	GlueDatabase string
}

// FromMap builds a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}
	cfg.Profile, _ = config["profile"].(string)
	cfg.Region, _ = config["region"].(string)
	cfg.CatalogID, _ = config["catalog_id"].(string)
	cfg.GlueDatabase, _ = config["glue_database"].(string)

	if cfg.CatalogID != "" && strings.ContainsAny(cfg.CatalogID, ". ") {
		return nil, fmt.Errorf("invalid catalog_id %q", cfg.CatalogID)
	}
	return cfg, nil
}

// CatalogName is the database-level name records are collected under.
func (c *Config) CatalogName() string {
	if c.CatalogID != "" {
		return c.CatalogID
	}
	return DefaultCatalogName
}
