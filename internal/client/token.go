package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/mentorspark/sessiond/internal/domain"
)

// TokenGrant is a bearer token bound to one participant identity and one
// meeting.
type TokenGrant struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	MeetingID string `json:"meetingId"`
}

// FetchSessionToken asks the session backend for a signaling token. The
// backend is an opaque external collaborator; failures map to
// domain.ErrTokenFetchFailed.
func FetchSessionToken(ctx context.Context, serverURL, sessionName string) (TokenGrant, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return TokenGrant{}, fmt.Errorf("cookie jar: %w", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	body, err := json.Marshal(map[string]string{"sessionName": sessionName})
	if err != nil {
		return TokenGrant{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		serverURL+"/api/session/token", bytes.NewReader(body))
	if err != nil {
		return TokenGrant{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return TokenGrant{}, fmt.Errorf("%w: %v", domain.ErrTokenFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TokenGrant{}, fmt.Errorf("%w: status %d", domain.ErrTokenFetchFailed, resp.StatusCode)
	}

	var grant TokenGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return TokenGrant{}, fmt.Errorf("%w: %v", domain.ErrTokenFetchFailed, err)
	}
	if grant.Token == "" {
		return TokenGrant{}, fmt.Errorf("%w: empty token", domain.ErrTokenFetchFailed)
	}
	return grant, nil
}
