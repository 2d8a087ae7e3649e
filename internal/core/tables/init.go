// Package tables registers all catalogue table definitions with the core registry.
// Import this package to ensure all tables are registered.
package tables

// Each file in this package uses init() to register its tables.
