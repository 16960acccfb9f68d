package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

type gatewayStub struct {
	data    *models.SchoolData
	loadErr error
	saveErr error
	saved   []models.SchoolData
}

func (g *gatewayStub) Load(context.Context) (*models.SchoolData, error) {
	return g.data, g.loadErr
}

func (g *gatewayStub) Save(_ context.Context, data models.SchoolData) error {
	if g.saveErr != nil {
		return g.saveErr
	}
	g.saved = append(g.saved, data)
	return nil
}

func TestFallbackGatewayLoadPrefersPrimary(t *testing.T) {
	primaryData := sampleSchoolData()
	primary := &gatewayStub{data: &primaryData}
	local := &gatewayStub{data: &models.SchoolData{Levels: []models.Level{{ID: "other"}}}}

	got, err := NewFallbackGateway(primary, local, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &primaryData, got)
}

func TestFallbackGatewayLoadFallsBackToLocal(t *testing.T) {
	localData := sampleSchoolData()
	primary := &gatewayStub{loadErr: errors.New("network unreachable")}
	local := &gatewayStub{data: &localData}

	got, err := NewFallbackGateway(primary, local, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &localData, got)
}

func TestFallbackGatewayLoadReturnsPrimaryErrorWhenLocalFails(t *testing.T) {
	primaryErr := errors.New("network unreachable")
	primary := &gatewayStub{loadErr: primaryErr}
	local := &gatewayStub{loadErr: errors.New("corrupt file")}

	_, err := NewFallbackGateway(primary, local, nil).Load(context.Background())
	assert.ErrorIs(t, err, primaryErr)
}

func TestFallbackGatewayLoadDoesNotFallBackWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &gatewayStub{loadErr: context.Canceled}
	local := &gatewayStub{data: &models.SchoolData{}}

	_, err := NewFallbackGateway(primary, local, nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackGatewaySaveMirrorsLocally(t *testing.T) {
	primary := &gatewayStub{}
	local := &gatewayStub{}
	data := sampleSchoolData()

	require.NoError(t, NewFallbackGateway(primary, local, nil).Save(context.Background(), data))
	assert.Len(t, primary.saved, 1)
	assert.Len(t, local.saved, 1)
}

func TestFallbackGatewaySaveFailsWithPrimary(t *testing.T) {
	primary := &gatewayStub{saveErr: errors.New("read-only")}
	local := &gatewayStub{}

	err := NewFallbackGateway(primary, local, nil).Save(context.Background(), sampleSchoolData())
	assert.Error(t, err)
	assert.Empty(t, local.saved)
}

func TestFallbackGatewayIgnoresLocalMirrorFailure(t *testing.T) {
	primary := &gatewayStub{}
	local := &gatewayStub{saveErr: errors.New("disk full")}

	assert.NoError(t, NewFallbackGateway(primary, local, nil).Save(context.Background(), sampleSchoolData()))
}
