// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - TreeParser: Parses raw export bytes into the uniform node tree
//   - ParserRegistry: Selects the appropriate parser per media type
//   - DocumentStore: Canonical document persistence with idempotent upsert
//   - CaseLoader: Loads parse-case definitions from operator configuration
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or parser package
package driven
