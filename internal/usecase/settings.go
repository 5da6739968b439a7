package usecase

import (
	"context"
	"fmt"

	"audiotranslator/internal/domain"
)

// LoadSettings reads through the local cache. On a cache miss the backend copy
// is fetched and cached.
func (c *SessionController) LoadSettings(ctx context.Context) (domain.Settings, error) {
	if c.store != nil {
		cached, ok, err := c.store.Load()
		if err != nil {
			c.log.Warning(fmt.Sprintf("settings cache unreadable: %v", err))
		} else if ok {
			return cached, nil
		}
	}

	settings, err := c.backend.FetchSettings(ctx)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if c.store != nil {
		if err := c.store.Save(settings); err != nil {
			c.log.Warning(fmt.Sprintf("failed to cache settings: %v", err))
		}
	}
	return settings, nil
}

// SaveSettings stores settings on the backend and then overwrites the cache.
func (c *SessionController) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := c.backend.StoreSettings(ctx, settings); err != nil {
		c.events.SessionError(errorCode(err), err.Error())
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("Error saving settings: %v", err))
		return err
	}
	if c.store != nil {
		if err := c.store.Save(settings); err != nil {
			c.events.SessionError(domain.ErrorCodeFilesystem, err.Error())
			c.events.Alert(domain.AlertWarning, fmt.Sprintf("Settings saved but not cached locally: %v", err))
			return nil
		}
	}

	for _, warning := range settings.Warnings() {
		c.events.Alert(domain.AlertWarning, warning)
	}
	c.log.Info(fmt.Sprintf("settings saved: %+v", settings.Redacted()))
	c.events.Alert(domain.AlertSuccess, "Settings saved successfully")
	return nil
}

// TestConnection checks that the translation API accepts settings.
func (c *SessionController) TestConnection(ctx context.Context, settings domain.Settings) (string, error) {
	if !settings.Valid() {
		return "", c.warn(ErrSettingsInvalid, "Please enter API endpoint and token")
	}
	if c.checker == nil {
		return "", errNotConfigured
	}
	message, err := c.checker.Check(ctx, settings)
	if err != nil {
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("Connection test failed: %v", err))
		return "", err
	}
	c.events.Alert(domain.AlertSuccess, message)
	return message, nil
}
