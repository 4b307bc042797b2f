package database

import (
	"context"
	"fmt"
)

// SettingsStore is the settings access consumed by the control surface and
// the session factory.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
	SaveSettings(ctx context.Context, settings map[string]string) error
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// LoadSettings returns every stored setting as a key/value map.
func (s *Sqlite) LoadSettings(ctx context.Context) (map[string]string, error) {
	var rows []settingRow
	err := s.connections.SelectContext(ctx, &rows, "SELECT key, value FROM settings")
	if err != nil {
		s.logger.Error("error loading settings", "error", err.Error())
		return nil, fmt.Errorf("error loading settings: %w", err)
	}

	settings := make(map[string]string, len(rows))
	for _, r := range rows {
		settings[r.Key] = r.Value
	}
	return settings, nil
}

// SaveSettings upserts the given keys in one transaction. Keys not present
// in the map are left untouched.
func (s *Sqlite) SaveSettings(ctx context.Context, settings map[string]string) error {
	tx, err := s.connections.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting settings transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO settings (key, value) VALUES (:key, :value)
	          ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	for key, value := range settings {
		s.logger.Debug("saving setting", "key", key)
		if _, err := tx.NamedExecContext(ctx, query, settingRow{Key: key, Value: value}); err != nil {
			s.logger.Error("error saving setting", "error", err.Error(), "key", key)
			return fmt.Errorf("error saving setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing settings: %w", err)
	}
	return nil
}
