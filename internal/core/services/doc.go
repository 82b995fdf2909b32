// Package services implements the core ingestion pipeline: structural
// fingerprinting, parse-case detection, canonical mapping, keyword
// extraction, batch orchestration and progress fan-out.
//
// Services depend only on domain types and driven ports; adapters wire
// them together at startup.
package services
