package archives

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ReadCurrentBackup reads the state file the restore script writes after a
// successful restoration. It returns nil without error when the file does
// not exist.
func ReadCurrentBackup(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return state, nil
}
