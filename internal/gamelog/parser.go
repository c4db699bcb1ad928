// Package gamelog parses FAF game session logs (game_<matchUID>.log) into
// session transcripts.
package gamelog

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dann1kid/faf-ddos-incidents/internal/logfinder"
	"github.com/dann1kid/faf-ddos-incidents/internal/logreader"
	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/pkg/faflog/pattern"
)

// Parser turns one game session log into a *model.SessionTranscript.
// A Parser is safe for concurrent use if its Library is.
type Parser struct {
	Library *pattern.Library
	Logger  *zap.Logger
}

// session is the per-file parse state.
type session struct {
	tr       *model.SessionTranscript
	log      *zap.Logger
	fallback time.Time
	hostLine int64
	localUID int64
}

// Parse reads path end to end. It fails with a *model.ParseFailure when the
// name does not encode a match UID or the file cannot be read; unrecognized
// and malformed lines are counted in SkippedLines.
func (p *Parser) Parse(ctx context.Context, path string) (*model.SessionTranscript, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("file", path))

	matchUID, ok := logfinder.ParseGameName(filepath.Base(path))
	if !ok {
		return nil, &model.ParseFailure{Path: path, Err: model.ErrUnrecognizedName}
	}
	info, err := logreader.Open(path)
	if err != nil {
		return nil, &model.ParseFailure{Path: path, Err: err}
	}

	s := &session{
		tr:       model.NewSessionTranscript(path, info.ModTime(), matchUID),
		log:      log,
		fallback: info.ModTime().UTC(),
	}
	err = logreader.Each(ctx, path, func(l logreader.Line) error {
		p.line(s, l)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &model.ParseFailure{Path: path, Err: err}
	}

	s.resolveHost()
	log.Debug("parsed game log",
		zap.Int64("match_uid", matchUID),
		zap.Int("players", len(s.tr.Players)),
		zap.Int("ips", len(s.tr.IPs)),
		zap.Int("skipped_lines", s.tr.SkippedLines))
	return s.tr, nil
}

func (p *Parser) line(s *session, l logreader.Line) {
	c, err := p.Library.Match(pattern.Game, l.Text)
	if err != nil {
		s.log.Warn("skipping malformed line", zap.Int("line", l.Num), zap.Error(err))
		s.tr.SkippedLines++
		return
	}
	if c == nil {
		return
	}

	ts, ok := p.Library.Timestamp(pattern.Game, l.Text)
	if !ok {
		ts = s.fallback
	}
	tr := s.tr

	switch c.Rule {
	case "local_player":
		uid := c.Int("uid")
		tr.SeePlayer(uid, c.String("nick"), ts)
		tr.Players[uid].IsLocal = true
		s.localUID = uid

	case "host_game":
		s.hostLine = c.Int("uid")
		tr.SeePlayer(s.hostLine, "", ts)

	case "connect_to_peer":
		uid := c.Int("uid")
		tr.SeePlayer(uid, c.String("nick"), ts)
		tr.SeeIP(uid, c.String("address"), ts)

	case "lobby_connections":
		uid := c.Int("uid")
		tr.SeePlayer(uid, c.String("nick"), ts)
		tr.SeeIP(uid, c.String("address"), ts)
		for _, peer := range peerUIDs(c.String("peers")) {
			tr.SeePlayer(peer, "", ts)
		}

	case "player_option":
		part := tr.SeePlayer(c.Int("uid"), "", ts)
		if c.String("key") != "Team" {
			return
		}
		team, err := strconv.Atoi(c.String("value"))
		if err != nil {
			s.log.Warn("skipping malformed team option", zap.Int("line", l.Num), zap.String("value", c.String("value")))
			tr.SkippedLines++
			return
		}
		part.Team = &team

	case "move_to_observers":
		tr.SeePlayer(c.Int("uid"), "", ts).Role = model.RoleObserver

	case "disconnect_peer":
		tr.SeePlayer(c.Int("uid"), "", ts)

	case "game_state":
		switch strings.ToLower(c.String("state")) {
		case "launching":
			if tr.Match.StartedAt.IsZero() || ts.Before(tr.Match.StartedAt) {
				tr.Match.StartedAt = ts
			}
		case "ended":
			if ts.After(tr.Match.EndedAt) {
				tr.Match.EndedAt = ts
			}
		}

	case "match_payload":
		s.payload(c.String("payload"), l.Num)
	}
}

func (s *session) payload(raw string, line int) {
	pl, err := parsePayload(raw)
	if err != nil {
		s.log.Warn("skipping unparsable match payload", zap.Int("line", line), zap.Error(err))
		s.tr.SkippedLines++
		return
	}
	m := &s.tr.Match
	if pl.MatchUID != 0 && pl.MatchUID != m.UID {
		s.log.Warn("ignoring payload of another match",
			zap.Int("line", line), zap.Int64("payload_match_uid", pl.MatchUID))
		return
	}

	m.RawPayload = []byte(raw)
	if pl.Title != "" {
		m.Title = pl.Title
	}
	if pl.MapName != "" {
		m.MapName = pl.MapName
	}
	if pl.GameType != "" {
		m.GameType = pl.GameType
	}
	if pl.HostUID != 0 {
		m.HostUID = pl.HostUID
	}
	if pl.Host != "" {
		m.HostNickname = pl.Host
	}
	if !pl.StartedAt.IsZero() && (m.StartedAt.IsZero() || pl.StartedAt.Before(m.StartedAt)) {
		m.StartedAt = pl.StartedAt
	}
	if pl.EndedAt.After(m.EndedAt) {
		m.EndedAt = pl.EndedAt
	}
}

// resolveHost picks the host from the payload UID, then the payload nickname,
// then the HostGame line, then the local player, and marks the host's
// participation.
func (s *session) resolveHost() {
	m := &s.tr.Match
	if m.HostUID == 0 && m.HostNickname != "" {
		for _, uid := range s.tr.PlayerUIDs() {
			if s.tr.Players[uid].Nickname == m.HostNickname {
				m.HostUID = uid
				break
			}
		}
		if m.HostUID == 0 {
			s.log.Warn("payload host does not match any player", zap.String("host", m.HostNickname))
		}
	}
	if m.HostUID == 0 {
		m.HostUID = s.hostLine
	}
	if m.HostUID == 0 {
		m.HostUID = s.localUID
	}
	if m.HostUID == 0 {
		return
	}
	if part, ok := s.tr.Participations[m.HostUID]; ok {
		part.Role = model.RoleHost
	}
}

func peerUIDs(list string) []int64 {
	var out []int64
	for _, f := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		if uid, err := strconv.ParseInt(f, 10, 64); err == nil && uid > 0 {
			out = append(out, uid)
		}
	}
	return out
}
