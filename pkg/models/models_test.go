package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatReportRoundTripsExtraFields(t *testing.T) {
	report := HeartbeatReport{
		StreamingActive: true,
		Extra:           map[string]any{"newField": "value", "count": float64(3)},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "value", decoded["newField"])
	assert.Equal(t, float64(3), decoded["count"])
	assert.Equal(t, true, decoded["streamingActive"])

	var roundTripped HeartbeatReport
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, report.Extra, roundTripped.Extra)
	assert.True(t, roundTripped.StreamingActive)
}

func TestHeartbeatReportUnmarshalWithoutExtraFieldsLeavesExtraNil(t *testing.T) {
	var report HeartbeatReport
	require.NoError(t, json.Unmarshal([]byte(`{"streamingActive":true}`), &report))
	assert.Nil(t, report.Extra)
}

func TestStatusPostRequestUnmarshalCapturesUnknownFields(t *testing.T) {
	var req StatusPostRequest
	body := `{"streamingActive":true,"futureField":"abc","futureCount":7}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.True(t, req.StreamingActive)
	assert.Equal(t, "abc", req.Extra["futureField"])
	assert.Equal(t, float64(7), req.Extra["futureCount"])
}

func TestStatusPostRequestUnmarshalWithoutUnknownFieldsLeavesExtraNil(t *testing.T) {
	var req StatusPostRequest
	require.NoError(t, json.Unmarshal([]byte(`{"streamingActive":true}`), &req))
	assert.Nil(t, req.Extra)
}

func TestBroadcastBindingBoundTo(t *testing.T) {
	b := BroadcastBinding{BoundStreamIDs: []string{"a", "b"}}
	assert.True(t, b.BoundTo("a"))
	assert.False(t, b.BoundTo("c"))
}

func TestBroadcastBindingEligible(t *testing.T) {
	assert.True(t, BroadcastBinding{Status: "active"}.Eligible())
	assert.True(t, BroadcastBinding{Status: "ready"}.Eligible())
	assert.False(t, BroadcastBinding{Status: "complete"}.Eligible())
}
