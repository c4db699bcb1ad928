package logfinder

import (
	"regexp"
	"strconv"
	"time"
)

var (
	gameName   = regexp.MustCompile(`^game_(\d+)\.log$`)
	clientName = regexp.MustCompile(`^client\.log\.(\d{4}-\d{2}-\d{2})\.(\d+)\.log$`)
)

// ParseGameName extracts the match UID from a game session log file name of
// the form game_<matchUID>.log. Matching is case-sensitive.
func ParseGameName(name string) (int64, bool) {
	m := gameName.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	uid, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || uid <= 0 {
		return 0, false
	}
	return uid, true
}

// ParseClientName extracts the date and sequence number from a client log
// file name of the form client.log.<YYYY-MM-DD>.<seq>.log.
func ParseClientName(name string) (time.Time, int, bool) {
	m := clientName.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, 0, false
	}
	date, err := time.Parse(time.DateOnly, m[1])
	if err != nil {
		return time.Time{}, 0, false
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, 0, false
	}
	return date, seq, true
}
