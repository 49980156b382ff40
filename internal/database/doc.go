// Package database opens pgx connection pools for the Postgres/TimescaleDB
// trade sink.
package database
