package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean-mirror/streamguard/pkg/models"
)

type fakeLister struct {
	byStatus map[string][]models.BroadcastBinding
	err      error
}

func (f *fakeLister) ListBroadcasts(ctx context.Context, status string) ([]models.BroadcastBinding, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byStatus[status], nil
}

func TestResolveBound(t *testing.T) {
	lister := &fakeLister{byStatus: map[string][]models.BroadcastBinding{
		"active": {{BroadcastID: "b1", Status: "active", BoundStreamIDs: []string{"stream-1"}}},
	}}

	outcome, err := resolve(context.Background(), lister, "stream-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBound, outcome)
}

func TestResolveNoBroadcast(t *testing.T) {
	lister := &fakeLister{byStatus: map[string][]models.BroadcastBinding{}}

	outcome, err := resolve(context.Background(), lister, "stream-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoBroadcast, outcome)
}

func TestResolveWrongBinding(t *testing.T) {
	lister := &fakeLister{byStatus: map[string][]models.BroadcastBinding{
		"upcoming": {{BroadcastID: "b2", Status: "ready", BoundStreamIDs: []string{"other-stream"}}},
	}}

	outcome, err := resolve(context.Background(), lister, "stream-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrongBinding, outcome)
}

func TestResolveAPIError(t *testing.T) {
	lister := &fakeLister{err: errors.New("network down")}

	_, err := resolve(context.Background(), lister, "stream-1")
	assert.Error(t, err)
}

func TestEnsureBroadcastCheckMapsOutcomesToCategories(t *testing.T) {
	cases := []struct {
		name    string
		lister  *fakeLister
		wantCat ExitCategory
		wantErr bool
	}{
		{
			name: "bound",
			lister: &fakeLister{byStatus: map[string][]models.BroadcastBinding{
				"active": {{BroadcastID: "b1", Status: "active", BoundStreamIDs: []string{"s1"}}},
			}},
			wantCat: CategoryNone,
			wantErr: false,
		},
		{
			name:    "no broadcast",
			lister:  &fakeLister{byStatus: map[string][]models.BroadcastBinding{}},
			wantCat: CategoryNoBroadcast,
			wantErr: true,
		},
		{
			name: "wrong binding",
			lister: &fakeLister{byStatus: map[string][]models.BroadcastBinding{
				"active": {{BroadcastID: "b1", Status: "active", BoundStreamIDs: []string{"other"}}},
			}},
			wantCat: CategoryWrongBinding,
			wantErr: true,
		},
		{
			name:    "api error",
			lister:  &fakeLister{err: errors.New("boom")},
			wantCat: CategoryAPIError,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			probe := NewEnsureBroadcast(tc.lister, "s1", zerolog.Nop())
			cat, err := probe.Check(context.Background())
			assert.Equal(t, tc.wantCat, cat)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecoveryProbeHintNeverPanics(t *testing.T) {
	probe := NewRecoveryProbe(&fakeLister{err: errors.New("boom")}, "s1", zerolog.Nop())
	probe.Hint(context.Background())
}
