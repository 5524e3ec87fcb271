// Package models holds the wire-level types shared between the fallback
// monitor, the primary-side reporter, the slate encoder runner, and the
// broadcast probes. Types here are what actually cross a process boundary
// (HTTP body, JSON state file, KEY=VALUE profile); derived/internal state
// lives closer to the component that owns it.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HeartbeatReport is a single status snapshot received from the primary.
type HeartbeatReport struct {
	ID         uuid.UUID `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
	ReportedAt time.Time `json:"reportedAt"`

	StreamingActive bool `json:"streamingActive"`
	FFmpegRunning   bool `json:"ffmpegRunning"`
	DayWindowActive bool `json:"dayWindowActive"`

	// CameraSignalAvailable and CameraNetworkReachable are tri-state: nil
	// means "unknown" and is treated as healthy by the decision predicate.
	CameraSignalAvailable  *bool `json:"cameraSignalAvailable"`
	CameraNetworkReachable *bool `json:"cameraNetworkReachable"`

	LastError     string         `json:"lastError,omitempty"`
	SourceAddress string         `json:"sourceAddress,omitempty"`
	HostLoad      *HostLoad      `json:"hostLoad,omitempty"`
	Config        map[string]any `json:"config,omitempty"`

	// Extra preserves any field the primary sends that this version of the
	// wire format does not recognize, so newer reporters stay compatible
	// with older monitors. It round-trips through MarshalJSON/UnmarshalJSON
	// as top-level keys alongside the named fields, rather than nested
	// under its own key.
	Extra map[string]any `json:"-"`
}

var heartbeatReportKnownKeys = map[string]bool{
	"id": true, "receivedAt": true, "reportedAt": true,
	"streamingActive": true, "ffmpegRunning": true, "dayWindowActive": true,
	"cameraSignalAvailable": true, "cameraNetworkReachable": true,
	"lastError": true, "sourceAddress": true, "hostLoad": true, "config": true,
}

// MarshalJSON flattens Extra's keys alongside the named fields so unknown
// fields received on one hop are still present on the next.
func (r HeartbeatReport) MarshalJSON() ([]byte, error) {
	type alias HeartbeatReport
	named, err := json.Marshal(alias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return named, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(named, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the named fields normally and stashes any
// unrecognized top-level key into Extra.
func (r *HeartbeatReport) UnmarshalJSON(data []byte) error {
	type alias HeartbeatReport
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = HeartbeatReport(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var extra map[string]any
	for k, v := range raw {
		if heartbeatReportKnownKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = val
	}
	r.Extra = extra
	return nil
}

// HostLoad is a light gopsutil-derived snapshot folded into a heartbeat so
// operators can see primary-side strain alongside the streaming status.
type HostLoad struct {
	CPUPercent float64 `json:"cpuPercent"`
	RAMPercent float64 `json:"ramPercent"`
}

// StatusPostRequest is the POST /status request body.
type StatusPostRequest struct {
	ReportedAt             time.Time      `json:"reportedAt"`
	StreamingActive        bool           `json:"streamingActive"`
	FFmpegRunning          bool           `json:"ffmpegRunning"`
	DayWindowActive        bool           `json:"dayWindowActive"`
	CameraSignalAvailable  *bool          `json:"cameraSignalAvailable"`
	CameraNetworkReachable *bool          `json:"cameraNetworkReachable"`
	LastError              string         `json:"lastError,omitempty"`
	HostLoad               *HostLoad      `json:"hostLoad,omitempty"`
	Config                 map[string]any `json:"config,omitempty"`

	// Extra carries any top-level key this version of the wire format does
	// not recognize, so it can be folded into the persisted HeartbeatReport
	// and survive to GET /status unchanged.
	Extra map[string]any `json:"-"`
}

var statusPostRequestKnownKeys = map[string]bool{
	"reportedAt": true, "streamingActive": true, "ffmpegRunning": true,
	"dayWindowActive": true, "cameraSignalAvailable": true,
	"cameraNetworkReachable": true, "lastError": true, "hostLoad": true,
	"config": true,
}

// UnmarshalJSON decodes the named fields normally and stashes any
// unrecognized top-level key into Extra.
func (s *StatusPostRequest) UnmarshalJSON(data []byte) error {
	type alias StatusPostRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = StatusPostRequest(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var extra map[string]any
	for k, v := range raw {
		if statusPostRequestKnownKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = val
	}
	s.Extra = extra
	return nil
}

// StatusPostResponse is the POST /status response body.
type StatusPostResponse struct {
	OK         bool      `json:"ok"`
	ReceivedAt time.Time `json:"receivedAt"`
	ID         uuid.UUID `json:"id"`
}

// StatusGetResponse is the GET /status response body.
type StatusGetResponse struct {
	Records        []HeartbeatReport `json:"records"`
	FallbackActive bool              `json:"fallbackActive"`
	LastDecision   string            `json:"lastDecision"`
	DecidedAt      time.Time         `json:"decidedAt"`
}

// BroadcastBinding is the platform-API-facing view used by the recovery
// and ensure-broadcast probes. A broadcast may carry more than one bound
// stream identifier; a match against any one of BoundStreamIDs counts.
type BroadcastBinding struct {
	BroadcastID    string   `json:"broadcastId"`
	Status         string   `json:"status"`
	BoundStreamIDs []string `json:"boundStreamIds"`
}

// BoundTo reports whether this binding includes the given stream ID.
func (b BroadcastBinding) BoundTo(streamID string) bool {
	for _, id := range b.BoundStreamIDs {
		if id == streamID {
			return true
		}
	}
	return false
}

// Eligible reports whether this binding's status counts as a live or
// about-to-be-live broadcast for recovery/ensure-broadcast purposes.
func (b BroadcastBinding) Eligible() bool {
	return b.Status == "active" || b.Status == "ready"
}
