// Package assemble builds bounded, citation-tagged prompts from pre-chunked
// source documents. Chunking itself happens upstream; this package only
// selects, orders, and renders.
package assemble

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/vision-platform/ai-gateway/internal/types"
)

const defaultTokenBudget = 3000

// Scorer ranks a chunk's relevance to a query. Higher scores are selected
// first. Implementations must be safe for concurrent use.
type Scorer interface {
	Score(query string, chunk types.DocumentChunk) float64
}

// Source is one cited document in tag order: Sources[0] is [S1].
type Source struct {
	Tag      string `json:"tag"`
	SourceID string `json:"source_id"`
	Label    string `json:"label"`
}

// AssembledContext is the outcome of one assembly pass. Chunks are in render
// order and TokenTotal never exceeds the configured budget.
type AssembledContext struct {
	Prompt     string
	Chunks     []types.DocumentChunk
	Sources    []Source
	Citations  map[string]string
	TokenTotal int
}

// Empty reports whether nothing fit the budget (or nothing was provided).
func (c *AssembledContext) Empty() bool { return len(c.Chunks) == 0 }

// Assembler selects chunks greedily by relevance under a token budget.
type Assembler struct {
	scorer Scorer
	budget int
}

// New builds an assembler. A nil scorer falls back to lexical term overlap,
// a non-positive budget falls back to the default.
func New(scorer Scorer, budget int) *Assembler {
	if scorer == nil {
		scorer = LexicalScorer{}
	}
	if budget <= 0 {
		budget = defaultTokenBudget
	}
	return &Assembler{scorer: scorer, budget: budget}
}

// Budget returns the configured token budget.
func (a *Assembler) Budget() int { return a.budget }

type candidate struct {
	chunk types.DocumentChunk
	cost  int
	score float64
}

// Assemble scores every chunk against the payload's query, selects greedily
// under the budget, and renders a prompt with [S1]-style citation tags. A
// chunk that does not fit the remaining budget is skipped whole, never
// truncated. Selected chunks render grouped by source in (sourceID, ordinal)
// order, so within-document order survives selection.
func (a *Assembler) Assemble(p *types.GeneratePayload) *AssembledContext {
	query := p.Query
	if query == "" {
		query = p.Prompt
	}
	instruction := p.Prompt
	if instruction == "" {
		instruction = p.Query
	}

	labels := make(map[string]string, len(p.Documents))
	var candidates []candidate
	for _, doc := range p.Documents {
		label := doc.Label
		if label == "" {
			label = doc.SourceID
		}
		labels[doc.SourceID] = label

		for _, chunk := range doc.Chunks {
			if chunk.SourceID == "" {
				chunk.SourceID = doc.SourceID
			}
			candidates = append(candidates, candidate{
				chunk: chunk,
				cost:  chunkCost(chunk),
				score: a.scorer.Score(query, chunk),
			})
		}
	}

	// Stable sort keeps document order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	remaining := a.budget
	total := 0
	var selected []candidate
	for _, c := range candidates {
		if remaining == 0 {
			break
		}
		if c.cost > remaining {
			continue
		}
		selected = append(selected, c)
		remaining -= c.cost
		total += c.cost
	}

	sort.Slice(selected, func(i, j int) bool {
		x, y := selected[i].chunk, selected[j].chunk
		if x.SourceID != y.SourceID {
			return x.SourceID < y.SourceID
		}
		return x.Ordinal < y.Ordinal
	})

	ctx := &AssembledContext{
		Citations:  make(map[string]string),
		TokenTotal: total,
	}
	tagBySource := make(map[string]string)
	for _, c := range selected {
		ctx.Chunks = append(ctx.Chunks, c.chunk)
		if _, ok := tagBySource[c.chunk.SourceID]; !ok {
			tag := fmt.Sprintf("S%d", len(ctx.Sources)+1)
			label := labels[c.chunk.SourceID]
			if label == "" {
				label = c.chunk.SourceID
			}
			tagBySource[c.chunk.SourceID] = tag
			ctx.Sources = append(ctx.Sources, Source{Tag: tag, SourceID: c.chunk.SourceID, Label: label})
			ctx.Citations[c.chunk.SourceID] = label
		}
	}

	ctx.Prompt = render(ctx, tagBySource, instruction)
	return ctx
}

func render(ctx *AssembledContext, tagBySource map[string]string, instruction string) string {
	if len(ctx.Chunks) == 0 {
		return instruction
	}

	var b strings.Builder
	b.WriteString("Answer the question using only the sources below. Cite sources inline using their bracketed tags.\n")

	current := ""
	for _, chunk := range ctx.Chunks {
		if chunk.SourceID != current {
			current = chunk.SourceID
			label := ctx.Citations[current]
			fmt.Fprintf(&b, "\n[%s] %s\n", tagBySource[current], label)
		}
		b.WriteString(chunk.Text)
		b.WriteString("\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(instruction)
	return b.String()
}

// chunkCost trusts the precomputed estimate and falls back to the rough
// 4-chars-per-token heuristic when the chunker did not supply one.
func chunkCost(chunk types.DocumentChunk) int {
	if chunk.EstimatedTokens > 0 {
		return chunk.EstimatedTokens
	}
	cost := len(chunk.Text) / 4
	if cost < 1 {
		cost = 1
	}
	return cost
}

// LexicalScorer scores by case-insensitive distinct term overlap: the
// fraction of query terms that appear in the chunk.
type LexicalScorer struct{}

func (LexicalScorer) Score(query string, chunk types.DocumentChunk) float64 {
	queryTerms := termSet(query)
	if len(queryTerms) == 0 {
		return 0
	}
	chunkTerms := termSet(chunk.Text)

	hits := 0
	for term := range queryTerms {
		if chunkTerms[term] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

func termSet(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
