// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

// User describes the signed-in account as returned by the backend.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// LoginData is the payload of a successful login.
type LoginData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Login authenticates with phone and password and returns the token pair.
func (c *Client) Login(ctx context.Context, phone, password string) (LoginData, error) {
	resp := c.DoPublic(ctx, http.MethodPost, apiPrefix+"/auth/login", map[string]string{
		"phone":    phone,
		"password": password,
	})
	if !resp.OK() {
		return LoginData{}, resp.Err()
	}

	var data LoginData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return LoginData{}, fmt.Errorf("decoding login response: %w", err)
	}
	if data.AccessToken == "" || data.RefreshToken == "" {
		return LoginData{}, fmt.Errorf("server returned incomplete token pair")
	}
	return data, nil
}

// RefreshTokens exchanges a refresh token for a fresh pair. This is the
// guard's RefreshFunc; it calls the refresh endpoint directly so a 401 here
// fails closed instead of triggering another refresh.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	resp := c.Do(ctx, http.MethodPost, refreshPath, map[string]string{
		"refresh_token": refreshToken,
	})
	if !resp.OK() {
		return "", "", resp.Err()
	}

	var data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", "", fmt.Errorf("decoding refresh response: %w", err)
	}
	return data.AccessToken, data.RefreshToken, nil
}

// Logout invalidates the refresh token server-side. Local state is cleared
// by the caller regardless of the outcome.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	resp := c.Do(ctx, http.MethodPost, apiPrefix+"/auth/logout", map[string]string{
		"refresh_token": refreshToken,
	})
	return resp.Err()
}

// RequestPasswordReset asks the backend to start a password reset for phone.
func (c *Client) RequestPasswordReset(ctx context.Context, phone string) error {
	resp := c.DoPublic(ctx, http.MethodPost, apiPrefix+"/auth/password-reset", map[string]string{
		"phone": phone,
	})
	return resp.Err()
}
