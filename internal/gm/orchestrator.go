// Package gm implements the game-master orchestration turn: transcript
// assembly, the blocking narration call, and repair of the service's
// semi-structured output.
package gm

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/djamnbo/dnd-master-club/internal/models"
	"github.com/djamnbo/dnd-master-club/internal/narrator"
)

var orchestrationTurnsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "session_engine_orchestration_turns_total",
		Help: "Total number of orchestration turns by outcome.",
	},
	[]string{"status"},
)

// Orchestrator runs one full orchestration turn against the narration
// service and returns the repaired structured response.
type Orchestrator struct {
	client  narrator.Client
	prompts *PromptBuilder
	logger  *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(client narrator.Client, prompts *PromptBuilder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		client:  client,
		prompts: prompts,
		logger:  logger.Named("Orchestrator"),
	}
}

// Run assembles the transcript from the given snapshots, performs the
// blocking narration call, and repairs the output. Network failures are
// reported as ErrOrchestrationNetwork, malformed output as ErrResponseParse;
// both are recoverable for the session.
func (o *Orchestrator) Run(ctx context.Context, history []models.ChatMessage, participants []models.Participant) (*models.GMResponse, error) {
	transcript := o.prompts.Build(history, participants)
	o.logger.Debug("narration transcript assembled", zap.Int("turns", len(transcript)))

	raw, err := o.client.Generate(ctx, transcript)
	if err != nil {
		orchestrationTurnsTotal.With(prometheus.Labels{"status": "network_error"}).Inc()
		return nil, fmt.Errorf("%w: %v", ErrOrchestrationNetwork, err)
	}

	resp, err := Repair(raw)
	if err != nil {
		orchestrationTurnsTotal.With(prometheus.Labels{"status": "parse_error"}).Inc()
		return nil, err
	}
	NormalizeChoices(resp, participants)

	orchestrationTurnsTotal.With(prometheus.Labels{"status": "success"}).Inc()
	return resp, nil
}
