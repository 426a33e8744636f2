// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package pipeline orchestrates one recommendation request end to end:
// embed the query, retrieve nearest candidates, filter and rank them, and
// optionally generate a natural-language explanation. Each request moves
// through an explicit stage machine so failures name the stage that
// produced them and observers can follow progress.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/index"
	"github.com/curio-dev/curio/internal/provider"
	"github.com/curio-dev/curio/internal/rank"
	"github.com/curio-dev/curio/internal/retrieval"
	curioerr "github.com/curio-dev/curio/pkg/errors"
	"github.com/curio-dev/curio/pkg/types"
)

// Explanation statuses reported on Result.
const (
	// ExplanationGenerated means the generation stage produced the text.
	ExplanationGenerated = "generated"
	// ExplanationUnavailable means generation was requested but degraded;
	// the ranked results are still authoritative.
	ExplanationUnavailable = "unavailable"
	// ExplanationDisabled means the request did not ask for an explanation.
	ExplanationDisabled = "disabled"
)

// promptCandidateLimit caps how many ranked items the explanation prompt
// quotes. Explanations summarize the head of the list, not all of K.
const promptCandidateLimit = 5

// Request is a single recommendation request.
type Request struct {
	// Query is the free-text query to recommend against. Required.
	Query string `json:"query"`

	// Filters constrains candidates by attribute. Keys must be declared in
	// the ranking config; an unknown key fails the request.
	Filters map[string]any `json:"filters,omitempty"`

	// K is the number of results wanted. Zero uses the configured default;
	// values beyond the configured maximum are rejected.
	K int `json:"k,omitempty"`

	// Explain requests a natural-language explanation of the results.
	Explain bool `json:"explain,omitempty"`
}

// Result is the outcome of a completed request. Candidates are sorted by
// descending score with ties broken by ascending item ID, and carry their
// final 1-based positions.
type Result struct {
	RequestID         string                `json:"request_id"`
	Query             string                `json:"query"`
	Candidates        []retrieval.Candidate `json:"candidates"`
	Explanation       string                `json:"explanation,omitempty"`
	ExplanationStatus string                `json:"explanation_status"`
	ConfigVersion     string                `json:"config_version"`
	Duration          time.Duration         `json:"duration"`
}

// Hooks provides optional observation points. All fields may be nil.
type Hooks struct {
	// OnTransition fires after every stage transition, including the
	// terminal Completed and Failed stages.
	OnTransition func(requestID string, stage types.Stage)
}

// Config wires a Pipeline's dependencies.
type Config struct {
	// Models pins model refs, ranking behavior, and timeouts. Zero fields
	// take package defaults.
	Models ModelConfig

	// Router resolves model references to live providers. Required.
	Router provider.Router

	// Index is the vector index queried for neighbors. Required.
	Index index.Index

	// Corpus resolves candidate IDs to item metadata. Required.
	Corpus corpus.Store

	// Logger receives stage transitions and degradation warnings. Nil uses
	// slog.Default.
	Logger *slog.Logger

	// Hooks observes stage transitions. Optional.
	Hooks *Hooks
}

// Pipeline executes recommendation requests. It is immutable after New and
// safe for concurrent use; swapping a model configuration means building a
// new Pipeline and replacing the old one atomically.
type Pipeline struct {
	models    ModelConfig
	router    provider.Router
	retriever *retrieval.Retriever
	engine    *rank.Engine
	logger    *slog.Logger
	hooks     *Hooks
}

// New validates cfg and builds a ready Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Router == nil {
		return nil, curioerr.New(curioerr.CodeConfigValidateMissingField, "pipeline requires a provider router")
	}
	if cfg.Index == nil {
		return nil, curioerr.New(curioerr.CodeConfigValidateMissingField, "pipeline requires a vector index")
	}
	if cfg.Corpus == nil {
		return nil, curioerr.New(curioerr.CodeConfigValidateMissingField, "pipeline requires a corpus store")
	}

	models := cfg.Models.withDefaults()
	if models.Version == "" {
		models.Version = DefaultModelConfig().Version
	}
	if err := models.Validate(); err != nil {
		return nil, err
	}

	engine, err := rank.NewEngine(models.Ranking)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		models:    models,
		router:    cfg.Router,
		retriever: retrieval.New(cfg.Router, models.EmbedderRef, cfg.Index, cfg.Corpus, logger),
		engine:    engine,
		logger:    logger.With("component", "pipeline"),
		hooks:     cfg.Hooks,
	}, nil
}

// Models returns the configuration epoch this pipeline serves.
func (p *Pipeline) Models() ModelConfig {
	return p.models
}

// run tracks one request through the stage machine.
type run struct {
	id     string
	stage  types.Stage
	logger *slog.Logger
	hooks  *Hooks
}

// transition advances the run to the next stage, logs it, and fires the
// observation hook.
func (r *run) transition(to types.Stage) {
	from := r.stage
	r.stage = to
	r.logger.Debug("stage transition", "from", string(from), "to", string(to))
	r.fireHook(to)
}

func (r *run) fireHook(stage types.Stage) {
	if r.hooks != nil && r.hooks.OnTransition != nil {
		r.hooks.OnTransition(r.id, stage)
	}
}

// Recommend executes one request through the full stage machine:
// Received, Embedding, Retrieving, Ranking, optionally Generating, then
// Completed. Embedding, retrieval, and ranking failures end the request in
// Failed with the originating stage attached to the error. Generation
// never fails a request: any error there degrades the explanation and the
// ranked results stand.
func (p *Pipeline) Recommend(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	id := uuid.New().String()
	r := &run{
		id:    id,
		stage: types.StageReceived,
		logger: p.logger.With(
			"request_id", id,
			"config_version", p.models.Version,
		),
		hooks: p.hooks,
	}

	// 1. Validate the request in the Received stage.
	r.logger.Debug("request received",
		"query_len", len(req.Query),
		"k", req.K,
		"filters", len(req.Filters),
		"explain", req.Explain,
	)
	r.fireHook(types.StageReceived)
	k, err := p.resolveRequest(&req)
	if err != nil {
		return nil, p.fail(r, types.StageReceived, err)
	}

	// 2. Embed the query under the embedding deadline.
	r.transition(types.StageEmbedding)
	vector, err := p.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, p.fail(r, types.StageEmbedding, err)
	}

	// 3. Retrieve with headroom so filtering can discard candidates
	// without starving the result.
	r.transition(types.StageRetrieving)
	candidates, err := p.search(ctx, vector, k*p.models.CandidateMultiplier)
	if err != nil {
		return nil, p.fail(r, types.StageRetrieving, err)
	}

	// 4. Filter and rank. An empty result is a valid outcome.
	r.transition(types.StageRanking)
	ranked, err := p.engine.Apply(ctx, candidates, req.Filters, k)
	if err != nil {
		return nil, p.fail(r, types.StageRanking, err)
	}

	// 5. Optionally generate an explanation. Failed is not reachable from
	// here: degradation is the only exit besides success.
	explanation := ""
	explanationStatus := ExplanationDisabled
	if req.Explain {
		r.transition(types.StageGenerating)
		explanation, explanationStatus = p.explain(ctx, r, req.Query, ranked)
	}

	r.transition(types.StageCompleted)
	res := &Result{
		RequestID:         r.id,
		Query:             req.Query,
		Candidates:        ranked,
		Explanation:       explanation,
		ExplanationStatus: explanationStatus,
		ConfigVersion:     p.models.Version,
		Duration:          time.Since(start),
	}
	r.logger.Info("request completed",
		"retrieved", len(candidates),
		"returned", len(ranked),
		"explanation_status", explanationStatus,
		"duration", res.Duration,
	)
	return res, nil
}

// resolveRequest validates the request and resolves the effective K.
func (p *Pipeline) resolveRequest(req *Request) (int, error) {
	var problems []string
	if strings.TrimSpace(req.Query) == "" {
		problems = append(problems, "query must not be empty")
	}
	if req.K < 0 {
		problems = append(problems, fmt.Sprintf("k must not be negative, got %d", req.K))
	}
	if req.K > p.models.MaxK {
		problems = append(problems, fmt.Sprintf("k must not exceed %d, got %d", p.models.MaxK, req.K))
	}
	if len(problems) > 0 {
		return 0, curioerr.New(curioerr.CodePipelineRequestInvalid, strings.Join(problems, "; "))
	}
	if req.K == 0 {
		return p.models.DefaultK, nil
	}
	return req.K, nil
}

// embedQuery runs the embedding stage under its deadline.
func (p *Pipeline) embedQuery(ctx context.Context, query string) ([]float32, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.models.EmbedTimeout)
	defer cancel()

	vector, err := p.retriever.EmbedQuery(stageCtx, query)
	if err != nil {
		return nil, timeoutOr(err, curioerr.CodeEmbedTimeout, "embedding query")
	}
	return vector, nil
}

// search runs the retrieval stage under its deadline.
func (p *Pipeline) search(ctx context.Context, vector []float32, n int) ([]retrieval.Candidate, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.models.RetrieveTimeout)
	defer cancel()

	candidates, err := p.retriever.Search(stageCtx, vector, n)
	if err != nil {
		return nil, timeoutOr(err, curioerr.CodeRetrieveTimeout, "retrieving candidates")
	}
	return candidates, nil
}

// explain runs the generation stage. It returns the explanation text and a
// status, never an error: routing failures, upstream failures, and
// deadline expiry all degrade to ExplanationUnavailable.
func (p *Pipeline) explain(ctx context.Context, r *run, query string, ranked []retrieval.Candidate) (string, string) {
	if len(ranked) == 0 {
		r.logger.Debug("skipping explanation", "reason", "no candidates")
		return "", ExplanationUnavailable
	}

	stageCtx, cancel := context.WithTimeout(ctx, p.models.GenerateTimeout)
	defer cancel()

	generator, err := p.router.RouteGenerator(stageCtx, p.models.GeneratorRef)
	if err != nil {
		r.logger.Warn("explanation degraded", "reason", "no generator", "error", err)
		return "", ExplanationUnavailable
	}

	text, err := generator.Complete(stageCtx, buildExplanationPrompt(query, ranked))
	if err != nil {
		r.logger.Warn("explanation degraded", "model", generator.ModelRef(), "error", err)
		return "", ExplanationUnavailable
	}
	return text, ExplanationGenerated
}

// fail moves the run to Failed and tags the error with the originating
// stage. Errors that already carry a classification keep it; anything
// uncoded becomes a generic pipeline stage failure.
func (p *Pipeline) fail(r *run, stage types.Stage, err error) error {
	r.transition(types.StageFailed)
	if curioerr.CodeOf(err) == "" {
		err = curioerr.Wrapf(err, curioerr.CodePipelineStageFailure, "stage %s failed", string(stage))
	}
	err = curioerr.With(err, curioerr.FieldStage(string(stage)))
	r.logger.Warn("request failed", "stage", string(stage), "error", err)
	return err
}

// timeoutOr wraps err with the stage's timeout code when the failure was a
// deadline expiry, and with the stage message otherwise. Inner
// classifications survive either way.
func timeoutOr(err error, code curioerr.Code, msg string) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return curioerr.Wrapf(err, code, "%s timed out", msg)
	}
	return curioerr.Wrap(err, curioerr.CodePipelineStageFailure, msg)
}

// buildExplanationPrompt renders the query and the head of the ranked list
// into a completion prompt.
func buildExplanationPrompt(query string, ranked []retrieval.Candidate) string {
	n := len(ranked)
	if n > promptCandidateLimit {
		n = promptCandidateLimit
	}

	var b strings.Builder
	b.WriteString("You are a recommendation assistant. In two or three sentences, explain why the items below match the request. Mention concrete attributes; do not invent items.\n\n")
	fmt.Fprintf(&b, "Request: %s\n\nItems:\n", query)
	for i := 0; i < n; i++ {
		item := ranked[i].Item
		fmt.Fprintf(&b, "%d. %s (category: %s, price: %.2f)", i+1, item.ID, item.Category, item.Price)
		if item.Description != "" {
			fmt.Fprintf(&b, ": %s", item.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
