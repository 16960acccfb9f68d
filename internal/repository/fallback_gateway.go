package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// FallbackGateway reads from a networked store and falls back to a local copy
// when the primary cannot be reached. Successful saves are mirrored locally.
type FallbackGateway struct {
	primary SchoolDataGateway
	local   SchoolDataGateway
	logger  *zap.Logger
}

// NewFallbackGateway wires a primary gateway with its local mirror.
func NewFallbackGateway(primary, local SchoolDataGateway, logger *zap.Logger) *FallbackGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackGateway{primary: primary, local: local, logger: logger}
}

// Load implements SchoolDataGateway.
func (g *FallbackGateway) Load(ctx context.Context) (*models.SchoolData, error) {
	data, err := g.primary.Load(ctx)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil || g.local == nil {
		return nil, err
	}

	g.logger.Warn("primary school data store unavailable, using local copy", zap.Error(err))
	local, localErr := g.local.Load(ctx)
	if localErr != nil {
		g.logger.Error("local school data store failed", zap.Error(localErr))
		return nil, err
	}
	return local, nil
}

// Save implements SchoolDataGateway.
func (g *FallbackGateway) Save(ctx context.Context, data models.SchoolData) error {
	if err := g.primary.Save(ctx, data); err != nil {
		return err
	}
	if g.local != nil {
		if err := g.local.Save(ctx, data); err != nil {
			g.logger.Warn("failed to mirror school data locally", zap.Error(err))
		}
	}
	return nil
}
