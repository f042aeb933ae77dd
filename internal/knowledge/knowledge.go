// Package knowledge provides the in-process knowledge base: a lightweight
// term-frequency search service plus the RAG and solution-draft
// collaborators built on top of it.
package knowledge

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service is an in-memory knowledge base using brute-force cosine
// similarity over term-frequency vectors. Suitable for the small curated
// corpora this layer carries; swap the contracts.KnowledgeService wiring
// for anything bigger.
type Service struct {
	mu   sync.RWMutex
	docs map[string]*models.KnowledgeDoc
}

// NewService creates an empty knowledge service.
func NewService() *Service {
	s := &Service{docs: make(map[string]*models.KnowledgeDoc)}
	log.Info().Msg("Knowledge service initialized")
	return s
}

// Add upserts documents into the corpus.
func (s *Service) Add(docs ...models.KnowledgeDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		cp := d
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		s.docs[cp.ID] = &cp
	}
}

// Count returns the corpus size.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Search returns the topK documents most similar to the query, best first.
// Zero-score documents are dropped.
func (s *Service) Search(_ context.Context, query string, topK int) ([]models.KnowledgeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qv := termFrequency(query)

	type scored struct {
		doc   *models.KnowledgeDoc
		score float64
	}
	var candidates []scored
	for _, d := range s.docs {
		score := cosineSimilarity(qv, termFrequency(d.Content))
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{doc: d, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]models.KnowledgeResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = models.KnowledgeResult{Doc: *candidates[i].doc, Score: candidates[i].score}
	}
	return results, nil
}

// ── Helpers ─────────────────────────────────────────────────

func termFrequency(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]*#")
		if len(w) < 2 {
			continue
		}
		tf[w]++
	}
	return tf
}

func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for w, va := range a {
		normA += va * va
		if vb, ok := b[w]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
