package holidaysource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"trash_reminder_bot/internal/domain/schedule"
)

// FileSource reads holiday notes published by an external scraper.
// The file uses the override table format and is re-read on every Load,
// so a scraper can replace it while the bot is running.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load returns the notes in the file. A missing file yields an empty table.
func (s *FileSource) Load(ctx context.Context) (schedule.Overrides, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return schedule.Overrides{}, nil
		}
		return nil, fmt.Errorf("failed to read holiday source %s: %w", s.path, err)
	}

	overrides, err := schedule.ParseOverrides(data)
	if err != nil {
		return nil, fmt.Errorf("holiday source %s: %w", s.path, err)
	}
	return overrides, nil
}
