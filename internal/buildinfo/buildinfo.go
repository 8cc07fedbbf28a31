// Package buildinfo carries version stamps injected with -ldflags "-X".
package buildinfo

import "time"

var (
	Version    = "dev"
	BuildTime  string
	CommitTime string
	CommitHash string
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC()

// Info summarizes the running binary; unset stamps are omitted
func Info() map[string]string {
	info := map[string]string{
		"version":    Version,
		"started_at": StartTime.Format(time.RFC3339),
	}
	for key, v := range map[string]string{
		"build_time":  BuildTime,
		"commit_time": CommitTime,
		"commit_hash": CommitHash,
	} {
		if v != "" {
			info[key] = v
		}
	}
	return info
}
