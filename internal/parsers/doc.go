// Package parsers provides the TreeParser registry and its implementations
// for the annotation export formats radnorm ingests. Each parser knows how
// to build the uniform node tree from a specific media type.
//
// Parsers are registered with the ParserRegistry at startup.
package parsers
