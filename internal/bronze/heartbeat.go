package bronze

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppendHeartbeat records one fetch as "<ts> | Fetched N departures", ts in UTC.
func AppendHeartbeat(path string, at time.Time, n int) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create heartbeat dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open heartbeat log: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s | Fetched %d departures\n", at.UTC().Format("2006-01-02 15:04:05"), n); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return nil
}
