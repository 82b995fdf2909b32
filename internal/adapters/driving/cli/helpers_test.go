package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/radnorm/radnorm/internal/adapters/driven/caseconfig"
	"github.com/radnorm/radnorm/internal/adapters/driven/storage/memory"
	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
	core "github.com/radnorm/radnorm/internal/core/services"
	"github.com/radnorm/radnorm/internal/parsers"
)

// setupTestServices wires the commands to in-memory implementations and
// returns a cleanup that restores the previous wiring.
func setupTestServices(t *testing.T) (*memory.DocumentStore, func()) {
	t.Helper()

	store := memory.NewDocumentStore()
	registry := core.NewCaseRegistry()
	require.NoError(t, registry.Register(domain.ParseCase{
		Name:        "header_only",
		Description: "Response header without read sessions",
		Reference: domain.StructuralFingerprint{
			Tokens: []string{
				"/LidcReadMessage",
				"/LidcReadMessage/ResponseHeader",
				"/LidcReadMessage/ResponseHeader/StudyInstanceUID",
			},
		},
	}))

	parserRegistry := parsers.NewDefaultRegistry()
	progress := core.NewProgressChannel()
	documents := core.NewDocumentService(store)
	orchestrator := core.NewOrchestrator(
		parserRegistry, registry, core.NewMapper(),
		core.NewKeywordExtractor(store), store, progress,
	)

	prev := services
	Setup(&Services{
		Ingestor:  orchestrator,
		Documents: documents,
		Export:    documents,
		Cases:     core.NewCaseService(registry, parserRegistry),
		Jobs:      store,
		Loader:    caseconfig.NewLoader(),
	})

	return store, func() {
		services = prev
		progress.Close()
		rootCmd.SetArgs(nil)
	}
}

// seedDocument stores one complete document directly through the store.
func seedDocument(t *testing.T, store *memory.DocumentStore, source, caseName string) string {
	t.Helper()

	result, err := store.Upsert(context.Background(), driven.UpsertItem{
		Document: domain.CanonicalDocument{
			ID:               "doc-" + source,
			SourceIdentifier: source,
			ContentHash:      "hash-" + source,
			CaseName:         caseName,
			Confidence:       0.9,
			Status:           domain.StatusComplete,
		},
		Content: domain.CanonicalContent{
			Payload: domain.Content{
				"study_instance_uid": {Kind: domain.KindString, Str: "1.2.3"},
			},
		},
		Links: []domain.KeywordLink{
			{Keyword: domain.Keyword{Text: "nodule"}, Relevance: 0.8},
		},
	})
	require.NoError(t, err)
	return result.DocumentID
}
