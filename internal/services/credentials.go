package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/whatsapp"
	"go.uber.org/zap"
)

// SettingsCredentials reads Cloud API credentials from the settings table,
// falling back per key to the environment.
type SettingsCredentials struct {
	settings    SettingsStore
	fallback    whatsapp.Credentials
	verifyToken string
	log         *zap.Logger
}

func NewSettingsCredentials(settings SettingsStore, fallback whatsapp.Credentials, verifyToken string, log *zap.Logger) *SettingsCredentials {
	return &SettingsCredentials{settings: settings, fallback: fallback, verifyToken: verifyToken, log: log}
}

func (p *SettingsCredentials) Credentials(ctx context.Context) (whatsapp.Credentials, error) {
	phoneID, err := p.setting(ctx, repositories.SettingPhoneNumberID, p.fallback.PhoneNumberID)
	if err != nil {
		return whatsapp.Credentials{}, err
	}
	token, err := p.setting(ctx, repositories.SettingAccessToken, p.fallback.AccessToken)
	if err != nil {
		return whatsapp.Credentials{}, err
	}

	creds := whatsapp.Credentials{PhoneNumberID: phoneID, AccessToken: token}
	if !creds.Valid() {
		return whatsapp.Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

// VerifyToken returns the webhook verify token, or "" when none is set.
func (p *SettingsCredentials) VerifyToken(ctx context.Context) string {
	token, err := p.setting(ctx, repositories.SettingWebhookVerifyToken, p.verifyToken)
	if err != nil {
		p.log.Warn("failed to read webhook verify token, using environment", zap.Error(err))
		return p.verifyToken
	}
	return token
}

func (p *SettingsCredentials) setting(ctx context.Context, key, fallback string) (string, error) {
	value, err := p.settings.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fallback, nil
		}
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	if value == "" {
		return fallback, nil
	}
	return value, nil
}
