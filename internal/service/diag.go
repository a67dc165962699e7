package service

import (
	"context"
	"time"

	"paywall-entitlement/internal/dto"
	"paywall-entitlement/internal/model"
	"paywall-entitlement/internal/store"
	"paywall-entitlement/internal/visit"

	"github.com/rs/zerolog/log"
)

const (
	diagKey = "diag:ping"
	diagTTL = time.Minute
)

type DiagService interface {
	// Run writes a probe record and reads it back through the configured store.
	Run(ctx context.Context) *dto.DiagResponse
}

type pinger interface {
	Ping(ctx context.Context) error
}

type diagServiceImpl struct {
	store   store.Store
	backend string
}

func NewDiagService(entitlements store.Store, backend string) DiagService {
	return &diagServiceImpl{store: entitlements, backend: backend}
}

func (s *diagServiceImpl) Run(ctx context.Context) *dto.DiagResponse {
	resp := &dto.DiagResponse{Backend: s.backend}

	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("backend", s.backend).Msg("store diag ping failed")
			resp.Error = "unreachable"
			return resp
		}
	}

	nonce := visit.NewToken()
	if err := s.store.Set(ctx, diagKey, model.NewRecord(model.SourceDiagnostic, nonce, time.Now()), diagTTL); err != nil {
		log.Warn().Err(err).Str("backend", s.backend).Msg("store diag write failed")
		resp.Error = "write_failed"
		return resp
	}
	resp.Wrote = true

	rec, err := s.store.Get(ctx, diagKey)
	if err != nil {
		log.Warn().Err(err).Str("backend", s.backend).Msg("store diag read failed")
		resp.Error = "read_failed"
		return resp
	}
	resp.Read = rec != nil
	resp.Match = rec != nil && rec.SessionID == nonce
	resp.OK = resp.Wrote && resp.Read && resp.Match
	return resp
}
