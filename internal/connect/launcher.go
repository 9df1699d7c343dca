package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	dErrors "fieldlink/pkg/domain-errors"
)

// Platform names the device class a call is launched from, in the vocabulary
// the video-collaboration launch API expects.
type Platform string

const (
	PlatformIOS     Platform = "iOS"
	PlatformAndroid Platform = "Android"
	PlatformPC      Platform = "PC"
)

// DetectPlatform maps a browser User-Agent onto a launch platform. Every
// Apple device counts as iOS: macOS has no native client, and modern iPads
// advertise themselves as Macs anyway.
func DetectPlatform(userAgentString string) Platform {
	ua := useragent.New(userAgentString)

	os := ua.OSInfo().FullName
	platform := ua.Platform()

	switch {
	case strings.Contains(platform, "iPhone"), strings.Contains(platform, "iPad"),
		strings.Contains(platform, "Macintosh"),
		strings.Contains(os, "iOS"), strings.Contains(os, "iPhone"):
		return PlatformIOS
	case strings.Contains(os, "Android"), strings.Contains(platform, "Android"):
		return PlatformAndroid
	default:
		return PlatformPC
	}
}

// Launcher asks the video-collaboration service for a one-shot call URL. The
// caller's tenant authenticates with its video API key; the key is sent on
// the request and never logged.
type Launcher struct {
	httpClient *http.Client
	launchURL  string
	logger     *slog.Logger
}

func NewLauncher(httpClient *http.Client, launchURL string, logger *slog.Logger) *Launcher {
	return &Launcher{httpClient: httpClient, launchURL: launchURL, logger: logger}
}

type launchRequest struct {
	Platform      Platform      `json:"Platform"`
	Email         string        `json:"email"`
	CalleeEmail   string        `json:"calleeEmail"`
	MetadataItems metadataItems `json:"metadataItems"`
}

// Launch requests a call URL from `from` to `to`. The response body is the
// URL as a JSON string; surrounding quotes are stripped.
func (l *Launcher) Launch(ctx context.Context, platform Platform, apiKey, from, to string, meta Metadata) (string, error) {
	body, err := json.Marshal(launchRequest{
		Platform:      platform,
		Email:         from,
		CalleeEmail:   to,
		MetadataItems: meta.items(),
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode launch request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.launchURL, bytes.NewReader(body))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build launch request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "ls Bearer "+apiKey)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "launch service unreachable")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "read launch response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.logger.ErrorContext(ctx, "launch request rejected",
			"status", resp.StatusCode, "body", string(raw))
		return "", dErrors.New(dErrors.CodeUpstreamUnavailable, "launch service rejected the request")
	}

	u := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if u == "" {
		return "", dErrors.New(dErrors.CodeUpstreamUnavailable, "launch service returned no URL")
	}
	return u, nil
}
