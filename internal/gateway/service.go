package gateway

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fenwall/aclcore/internal/acl"
)

// Service orchestrates compilation and publication for a location: compile
// via acl.Compiler, push via Publisher, and remember the last successfully
// published config per location for the "last compiled config" read path.
type Service struct {
	mu        sync.RWMutex
	compiler  *acl.Compiler
	publisher Publisher
	log       *zap.Logger
	current   map[acl.ID]*acl.FirewallConfig
}

func NewService(compiler *acl.Compiler, publisher Publisher, log *zap.Logger) *Service {
	return &Service{
		compiler:  compiler,
		publisher: publisher,
		log:       log,
		current:   make(map[acl.ID]*acl.FirewallConfig),
	}
}

// CompileAndPublish compiles a location's ACL policy and pushes the result
// to its gateway, remembering it as the location's current config on
// success.
func (s *Service) CompileAndPublish(ctx context.Context, locationID acl.ID) (*acl.FirewallConfig, error) {
	cfg, err := s.compiler.CompileForLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("compile location %d: %w", locationID, err)
	}

	if cfg == nil {
		s.mu.Lock()
		s.current[locationID] = nil
		s.mu.Unlock()

		s.log.Info("nothing to publish for location",
			zap.Int64("location_id", int64(locationID)))
		return nil, nil
	}

	if err := s.publisher.Push(ctx, locationID, cfg); err != nil {
		return nil, fmt.Errorf("publish location %d: %w", locationID, err)
	}

	s.mu.Lock()
	s.current[locationID] = cfg
	s.mu.Unlock()

	s.log.Info("firewall config compiled and published",
		zap.Int64("location_id", int64(locationID)),
		zap.Int("rule_count", len(cfg.Rules)))
	return cfg, nil
}

// CurrentConfig returns the last successfully published config for a
// location, or nil if none has been published this process lifetime or the
// latest CompileAndPublish for it found nothing to publish.
func (s *Service) CurrentConfig(locationID acl.ID) *acl.FirewallConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[locationID]
}

// Preview compiles a location's ACL policy without publishing it, for an
// operator reviewing a pending change.
func (s *Service) Preview(ctx context.Context, locationID acl.ID) (string, error) {
	cfg, err := s.compiler.CompileForLocation(ctx, locationID)
	if err != nil {
		return "", fmt.Errorf("compile location %d: %w", locationID, err)
	}
	return RenderPreview(locationID, cfg)
}
