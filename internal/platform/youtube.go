// Package platform provides a thin client over the video platform's REST
// API (modeled on the YouTube Live Broadcasts API), consumed by both the
// broadcast recovery probe and the ensure-broadcast probe.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	streamguarderrors "github.com/ausocean-mirror/streamguard/internal/errors"
	"github.com/ausocean-mirror/streamguard/pkg/models"
)

// Credentials is the on-disk shape of the OAuth refresh-token file loaded
// by the recovery and ensure-broadcast probes.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// LoadCredentials reads the OAuth refresh-token credential file from disk.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, streamguarderrors.New(streamguarderrors.ApiError, fmt.Errorf("reading credentials file: %w", err))
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, streamguarderrors.New(streamguarderrors.ApiError, fmt.Errorf("parsing credentials file: %w", err))
	}
	if creds.RefreshToken == "" {
		return nil, streamguarderrors.New(streamguarderrors.ApiError, fmt.Errorf("credentials file has no refresh_token"))
	}
	return &creds, nil
}

// Client wraps the youtube/v3 Live Broadcasts API behind the narrow
// surface the probes need.
type Client struct {
	creds *Credentials
}

// NewClient builds a Client from a loaded credential file. The service is
// not built here but afresh on every ListBroadcasts call, so that a
// bad/expired refresh token is only ever surfaced as a call-time ApiError,
// never a startup panic.
func NewClient(creds *Credentials) *Client {
	return &Client{creds: creds}
}

func (c *Client) service(ctx context.Context) (*youtube.Service, error) {
	conf := &oauth2.Config{
		ClientID:     c.creds.ClientID,
		ClientSecret: c.creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeScope},
	}
	tok := &oauth2.Token{RefreshToken: c.creds.RefreshToken}
	ts := conf.TokenSource(ctx, tok)

	// Force an early refresh so a dead refresh token surfaces as
	// InvalidToken here rather than deep inside the List call below.
	if _, err := ts.Token(); err != nil {
		return nil, streamguarderrors.New(streamguarderrors.ApiError, fmt.Errorf("InvalidToken: refreshing oauth token: %w", err))
	}

	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, streamguarderrors.New(streamguarderrors.ApiError, fmt.Errorf("Network: constructing youtube service: %w", err))
	}
	return svc, nil
}

// ListBroadcasts lists broadcasts in the given status ("active" or
// "upcoming" — the API rejects combined status filters, so callers issue
// one request per status) and returns them as BroadcastBindings.
func (c *Client) ListBroadcasts(ctx context.Context, status string) ([]models.BroadcastBinding, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.LiveBroadcasts.List([]string{"status", "contentDetails"}).
		BroadcastStatus(status).
		Mine(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, streamguarderrors.New(streamguarderrors.ApiError, fmt.Errorf("listing %s broadcasts: %w", status, err))
	}

	bindings := make([]models.BroadcastBinding, 0, len(resp.Items))
	for _, item := range resp.Items {
		b := models.BroadcastBinding{BroadcastID: item.Id}
		if item.Status != nil {
			b.Status = lifeCycleToStatus(item.Status.LifeCycleStatus)
		}
		if item.ContentDetails != nil && item.ContentDetails.BoundStreamId != "" {
			b.BoundStreamIDs = append(b.BoundStreamIDs, item.ContentDetails.BoundStreamId)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

// lifeCycleToStatus maps the API's LifeCycleStatus vocabulary
// (created/ready/testing/live/complete/revoked) onto the probe's simpler
// active/ready/other vocabulary.
func lifeCycleToStatus(lifeCycle string) string {
	switch lifeCycle {
	case "live":
		return "active"
	case "ready", "testing":
		return "ready"
	default:
		return lifeCycle
	}
}
