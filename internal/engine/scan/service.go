package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/engine/discovery"
	"github.com/rendis/gridrank/internal/model"
)

// DiscoveryPolicy decides what a failed competitor discovery does to a scan.
type DiscoveryPolicy int

const (
	// ProceedOnFailure scans with no competitors; the target then ranks first everywhere.
	ProceedOnFailure DiscoveryPolicy = iota
	// AbortOnFailure fails the scan with ErrDiscovery.
	AbortOnFailure
)

func (p DiscoveryPolicy) String() string {
	if p == AbortOnFailure {
		return "abort"
	}
	return "proceed"
}

// ParseDiscoveryPolicy accepts "proceed" or "abort". Empty means proceed.
func ParseDiscoveryPolicy(s string) (DiscoveryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "proceed":
		return ProceedOnFailure, nil
	case "abort":
		return AbortOnFailure, nil
	}
	return ProceedOnFailure, eris.Errorf("scan: unknown discovery policy %q", s)
}

// History persists finished scans.
type History interface {
	Save(ctx context.Context, entry model.HistoryEntry) error
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Policy         DiscoveryPolicy
	MaxCompetitors int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service runs the full scan flow: discovery, scoring and persistence.
type Service struct {
	runner     *Runner
	discoverer discovery.Discoverer
	history    History
	cfg        ServiceConfig
	log        *zap.Logger
}

// NewService wires a Service. discoverer and history may be nil.
func NewService(runner *Runner, discoverer discovery.Discoverer, history History, cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		runner:     runner,
		discoverer: discoverer,
		history:    history,
		cfg:        cfg,
		log:        zap.L().With(zap.String("component", "scan_service")),
	}
}

// Scan discovers competitors for settings, runs the scan and stores it.
// A storage failure is reported in Outcome.SaveErr and never drops the result.
func (s *Service) Scan(ctx context.Context, settings model.ScanSettings, sink ProgressSink) (*Outcome, error) {
	if err := validateTarget(settings.Target); err != nil {
		return nil, invalid(err)
	}
	if strings.TrimSpace(settings.SearchQuery) == "" {
		return nil, invalid(eris.New("scan: empty search query"))
	}

	competitors, sources, err := s.discover(ctx, settings)
	if err != nil {
		return nil, err
	}

	out, err := s.runner.Run(ctx, Input{
		Target:       settings.Target,
		Competitors:  competitors,
		GridSpecText: settings.GridSpecText,
		Sources:      sources,
	}, sink)
	if err != nil {
		return nil, err
	}

	if s.history == nil {
		return out, nil
	}

	entry := model.HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: s.cfg.Now().UTC(),
		Settings:  settings,
		Result:    *out.Result,
	}
	if err := s.history.Save(ctx, entry); err != nil {
		s.log.Error("failed to save scan", zap.String("target", settings.Target.ID), zap.Error(err))
		out.SaveErr = eris.Wrap(err, "scan: save history")
		return out, nil
	}
	out.HistoryID = entry.ID
	return out, nil
}

func (s *Service) discover(ctx context.Context, settings model.ScanSettings) ([]model.Business, []model.Source, error) {
	if s.discoverer == nil {
		return nil, nil, nil
	}

	res, err := s.discoverer.FindCompetitors(ctx, settings.Target, settings.SearchQuery)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, canceled(ctx)
		}
		if s.cfg.Policy == AbortOnFailure {
			return nil, nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
		}
		s.log.Warn("competitor discovery failed, scanning target alone",
			zap.String("target", settings.Target.ID),
			zap.String("query", settings.SearchQuery),
			zap.Error(err),
		)
		return nil, nil, nil
	}
	if res == nil {
		return nil, nil, nil
	}

	competitors := discovery.Sanitize(settings.Target, res.Competitors, s.cfg.MaxCompetitors)
	if dropped := len(res.Competitors) - len(competitors); dropped > 0 {
		s.log.Debug("dropped competitors", zap.Int("dropped", dropped))
	}
	if len(competitors) == 0 {
		s.log.Info("no competitors found", zap.String("query", settings.SearchQuery))
	}
	return competitors, res.Sources, nil
}
