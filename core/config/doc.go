// Package config loads the application configuration.
//
// Values come from environment variables, optionally seeded from a .env
// file. Every key has a default declared on the owning package's Config
// struct through a `default` tag, so a bare environment is enough to start.
//
// # Configuration Structure
//
//   - Server: HTTP listen port, API key and timeouts
//   - Log: level and encoding
//   - Database: optional published-titles ledger (sqlite or mysql)
//   - Storage: optional index snapshots in S3-compatible storage
//   - Telegram: bot token, publishing channel and admin chat
//   - Library: book collection root and category filter
//   - Index: channel index file and lock timeout
//   - Upload: pacing, flood cool-down and retry policy
//   - Sync: periodic sync interval, page pause and retry policy
//
// Nested keys map to upper-case environment variables joined by
// underscores, e.g. upload.retry.max_attempts is UPLOAD_RETRY_MAX_ATTEMPTS.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Telegram.Channel)
package config
