package ai

import (
	"context"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
)

// ModelStatus reports how the model server looks from this process.
type ModelStatus struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	VisionModel    string `json:"vision_model,omitempty"`
	VisionEnabled  bool   `json:"vision_enabled"`
	Reachable      bool   `json:"reachable"`
	ModelAvailable bool   `json:"model_available"`
}

type Service struct {
	analyzer      ai.Analyzer
	provider      string
	model         string
	visionModel   string
	visionEnabled bool
}

func NewService(analyzer ai.Analyzer, provider, model, visionModel string, visionEnabled bool) *Service {
	return &Service{
		analyzer:      analyzer,
		provider:      provider,
		model:         model,
		visionModel:   visionModel,
		visionEnabled: visionEnabled,
	}
}

// Status checks reachability first; availability is only probed when the
// server answers.
func (s *Service) Status(ctx context.Context) ModelStatus {
	st := ModelStatus{
		Provider:      s.provider,
		Model:         s.model,
		VisionModel:   s.visionModel,
		VisionEnabled: s.visionEnabled,
	}
	st.Reachable = s.analyzer.HealthCheck(ctx)
	if st.Reachable {
		st.ModelAvailable = s.analyzer.VerifyModelAvailable(ctx)
	}
	return st
}

// Healthy implements the readiness probe for the model server.
func (s *Service) Healthy(ctx context.Context) error {
	if !s.analyzer.HealthCheck(ctx) {
		return &ai.Error{Kind: ai.KindServiceNotRunning, Message: s.provider + " is not reachable"}
	}
	return nil
}
