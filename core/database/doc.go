// Package database opens the optional SQL database behind the
// published-titles ledger.
//
// Connect wraps GORM and supports two drivers: "mysql" for a shared server
// and "sqlite" for a local file (or ":memory:" in tests).
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns read the live table definition. They
// are used to verify the ledger table when automatic migration is off.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    logger.Warn("Ledger disabled", zap.Error(err))
//	}
//
//	missing, err := database.MissingColumns(db, "published_titles", []string{"title_key"})
package database
