// Package database opens and supervises the bun connection: factory and
// manager with health checks and reconnect, query hooks (debug printer, slow
// query log, counter, prometheus metrics), SQL error classification, the model
// registry, schema migrations with foreign keys and SQL seed files.
package database
