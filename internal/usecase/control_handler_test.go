package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickerPulse/internal/domain/models"
)

type fakeController struct {
	added    []string
	enhanced int
	focus    models.Region
	mode     Mode
	addErr   error
}

func (f *fakeController) AddInstruments(_ context.Context, symbols []string) ([]string, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, symbols...)
	return symbols, nil
}

func (f *fakeController) EnhanceUniverse(context.Context) ([]string, error) {
	f.enhanced++
	return nil, nil
}

func (f *fakeController) SetFocus(r models.Region) { f.focus = r }
func (f *fakeController) SetMode(m Mode)           { f.mode = m }

func TestControlHandlerActions(t *testing.T) {
	ctx := context.Background()
	ctrl := &fakeController{}
	h := NewControlHandler("tickerpulse.control", ctrl, nil, nil)
	assert.Equal(t, "tickerpulse.control", h.Topic())

	require.NoError(t, h.Handle(ctx, []byte(`{"action":"add_tickers","tickers":["AAPL","TSLA"]}`)))
	assert.Equal(t, []string{"AAPL", "TSLA"}, ctrl.added)

	require.NoError(t, h.Handle(ctx, []byte(`{"action":"enhance"}`)))
	assert.Equal(t, 1, ctrl.enhanced)

	require.NoError(t, h.Handle(ctx, []byte(`{"action":"set_focus","region":"in"}`)))
	assert.Equal(t, models.RegionIN, ctrl.focus)

	require.NoError(t, h.Handle(ctx, []byte(`{"action":"set_mode","mode":"Aggressive"}`)))
	assert.Equal(t, ModeAggressive, ctrl.mode)

	require.NoError(t, h.Handle(ctx, []byte(`{"action":"reboot"}`)))
}

func TestControlHandlerRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	ctrl := &fakeController{addErr: models.ErrInvalidInstruments}
	h := NewControlHandler("control", ctrl, nil, nil)

	assert.Error(t, h.Handle(ctx, []byte(`{not json`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"action":"set_focus","region":"mars"}`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"action":"set_mode","mode":"turbo"}`)))

	err := h.Handle(ctx, []byte(`{"action":"add_tickers","tickers":[]}`))
	assert.True(t, errors.Is(err, models.ErrInvalidInstruments))
	assert.Empty(t, ctrl.focus)
}
