package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FederatedVerifier delegates credential verification to an external identity
// provider and maps its role metadata onto the internal role vocabulary.
type FederatedVerifier struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

func NewFederatedVerifier(baseURL, serviceKey string) *FederatedVerifier {
	return &FederatedVerifier{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		serviceKey: serviceKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type idpUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Metadata struct {
		Role     string `json:"role"`
		ClientID string `json:"clientId"`
	} `json:"user_metadata"`
}

func (v *FederatedVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create idp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("apikey", v.serviceKey)

	res, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("idp request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return nil, ErrUnauthenticated
	}

	var u idpUser
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode idp response: %w", err)
	}
	if u.ID == "" {
		return nil, ErrUnauthenticated
	}

	return &Identity{
		ID:       u.ID,
		Username: u.Email,
		Role:     mapRole(u.Metadata.Role),
		ClientID: u.Metadata.ClientID,
	}, nil
}

func mapRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin
	case "client":
		return RoleClient
	default:
		return RolePublic
	}
}
