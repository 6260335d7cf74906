// Package database implements the party membership store on PostgreSQL.
package database
