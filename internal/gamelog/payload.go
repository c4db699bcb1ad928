package gamelog

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

var payloads fastjson.ParserPool

// payload is the match metadata object embedded in a session log.
type payload struct {
	MatchUID  int64
	Title     string
	MapName   string
	GameType  string
	Host      string
	HostUID   int64
	StartedAt time.Time
	EndedAt   time.Time
}

func parsePayload(raw string) (*payload, error) {
	p := payloads.Get()
	defer payloads.Put(p)

	v, err := p.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &payload{
		MatchUID:  jsonInt(v, "match_id"),
		Title:     jsonString(v, "title"),
		MapName:   jsonString(v, "mapname", "map_name", "map"),
		GameType:  jsonString(v, "game_type", "featured_mod"),
		Host:      jsonString(v, "host"),
		HostUID:   jsonInt(v, "host_uid"),
		StartedAt: jsonTime(v, "game_start", "launched_at"),
		EndedAt:   jsonTime(v, "game_end", "ended_at"),
	}, nil
}

// jsonString returns the first non-empty string among keys.
func jsonString(v *fastjson.Value, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(string(v.GetStringBytes(k))); s != "" {
			return s
		}
	}
	return ""
}

// jsonInt accepts a JSON number or a numeric string.
func jsonInt(v *fastjson.Value, key string) int64 {
	f := v.Get(key)
	if f == nil {
		return 0
	}
	switch f.Type() {
	case fastjson.TypeNumber:
		n, err := f.Int64()
		if err != nil {
			return 0
		}
		return n
	case fastjson.TypeString:
		n, err := strconv.ParseInt(string(f.GetStringBytes()), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// jsonTime accepts unix seconds (possibly fractional) or an RFC 3339 string.
func jsonTime(v *fastjson.Value, keys ...string) time.Time {
	for _, k := range keys {
		f := v.Get(k)
		if f == nil {
			continue
		}
		switch f.Type() {
		case fastjson.TypeNumber:
			secs := f.GetFloat64()
			if secs > 0 {
				return time.UnixMilli(int64(secs * 1000)).UTC()
			}
		case fastjson.TypeString:
			if ts, err := time.Parse(time.RFC3339, string(f.GetStringBytes())); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}
