// Package clientlog parses FAF client logs (client.log.<date>.<seq>.log) into
// ordered connection event transcripts with ICE candidate sightings.
package clientlog

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

// Parser turns one client log into a *model.ClientTranscript.
type Parser struct {
	Library *pattern.Library
	Logger  *zap.Logger
}

type state struct {
	tr       *model.ClientTranscript
	log      *zap.Logger
	lastTS   time.Time
	matchUID int64 // open match context, 0 outside a game
}

// Parse reads path in file order. Events keep file order and are never
// merged. The failure policy matches gamelog.Parser.Parse.
func (p *Parser) Parse(ctx context.Context, path string) (*model.ClientTranscript, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("file", path))

	date, seq, ok := logfinder.ParseClientName(filepath.Base(path))
	if !ok {
		return nil, &model.ParseFailure{Path: path, Err: model.ErrUnrecognizedName}
	}
	info, err := logreader.Open(path)
	if err != nil {
		return nil, &model.ParseFailure{Path: path, Err: err}
	}

	s := &state{
		tr:     model.NewClientTranscript(path, info.ModTime(), date, seq),
		log:    log,
		lastTS: info.ModTime().UTC(),
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

	log.Debug("parsed client log",
		zap.Int("events", len(s.tr.Events)),
		zap.Int("ips", len(s.tr.IPs)),
		zap.Int("skipped_lines", s.tr.SkippedLines))
	return s.tr, nil
}

func (p *Parser) line(s *state, l logreader.Line) {
	// Continuation lines without a timestamp inherit the previous one.
	if ts, ok := p.Library.Timestamp(pattern.Client, l.Text); ok {
		s.lastTS = ts
	}
	c, err := p.Library.Match(pattern.Client, l.Text)
	if err != nil {
		s.log.Warn("skipping malformed line", zap.Int("line", l.Num), zap.Error(err))
		s.tr.SkippedLines++
		return
	}
	if c == nil {
		return
	}

	tr := s.tr
	ts := s.lastTS
	ev := model.ConnectionEvent{
		Line:      l.Num,
		Timestamp: ts,
		SrcUID:    tr.LocalUID,
		MatchUID:  s.matchUID,
		Raw:       l.Text,
	}

	switch c.Rule {
	case "login":
		uid := c.Int("uid")
		tr.LocalUID = uid
		tr.SeePlayer(uid, c.String("nick"), ts).IsLocal = true
		return

	case "game_launch":
		s.matchUID = c.Int("match")
		tr.SeeMatch(s.matchUID, ts)
		return

	case "game_closed":
		ev.Kind = model.EventGameClosed
		ev.MatchUID = c.Int("match")
		if s.matchUID == ev.MatchUID {
			s.matchUID = 0
		}

	case "game_connect":
		ev.Kind = model.EventConnect
		ev.DstUID = c.Int("uid")
		tr.SeePlayer(ev.DstUID, c.String("nick"), ts)

	case "game_disconnect":
		uids := listUIDs(c.String("uids"))
		if len(uids) == 0 {
			return
		}
		ev.Kind = model.EventDisconnect
		ev.DstUID = uids[0]
		for _, uid := range uids[1:] {
			tr.SeePlayer(uid, "", ts)
		}

	case "ice_state":
		ev.Kind = model.ICEStateEvent(c.String("state"))
		ev.DstUID = c.Int("uid")

	case "connection_established":
		ev.Kind = model.EventPeerConnect
		ev.SrcUID, ev.DstUID = c.Int("src"), c.Int("dst")

	case "connection_lost":
		ev.Kind = model.EventPeerDisconnect
		ev.SrcUID, ev.DstUID = c.Int("src"), c.Int("dst")

	case "ice_message":
		ev.Kind = model.EventICEMessage
		ev.SrcUID, ev.DstUID = c.Int("src"), c.Int("dst")
		p.candidates(s, &ev, c.String("payload"))

	// ice-adapter lines
	case "ice_telemetry":
		uid := c.Int("uid")
		if tr.LocalUID == 0 {
			tr.LocalUID = uid
		}
		tr.SeePlayer(uid, "", ts).IsLocal = true
		s.matchUID = c.Int("match")
		tr.SeeMatch(s.matchUID, ts)
		return

	case "ice_join_game", "ice_connect_to_peer":
		ev.Kind = model.EventConnect
		ev.DstUID = c.Int("uid")
		tr.SeePlayer(ev.DstUID, strings.TrimSpace(c.String("nick")), ts)

	case "ice_msg_received":
		ev.Kind = model.EventICEMessage
		ev.SrcUID = 0
		p.candidates(s, &ev, c.String("payload"))

	case "ice_connected":
		ev.Kind = model.EventPeerConnect
		ev.SrcUID, ev.DstUID = c.Int("src"), c.Int("dst")

	case "ice_disconnected":
		ev.Kind = model.EventDisconnect
		ev.DstUID = c.Int("uid")

	default:
		return
	}

	tr.Append(ev)
}

// candidates records the addresses carried by an ICE message payload. They
// belong to the message's source player.
func (p *Parser) candidates(s *state, ev *model.ConnectionEvent, payload string) {
	if payload == "" {
		return
	}

	var cands []candidate
	if strings.HasPrefix(payload, "{") {
		msg, err := parseICE(payload)
		if err != nil {
			s.log.Warn("unparsable ICE message payload", zap.Int("line", ev.Line), zap.Error(err))
			return
		}
		if msg.SrcUID != 0 {
			ev.SrcUID = msg.SrcUID
		}
		if msg.DstUID != 0 {
			ev.DstUID = msg.DstUID
		}
		cands = msg.Candidates
	} else {
		var err error
		cands, err = inlineCandidates(p.Library, payload)
		if err != nil {
			s.log.Warn("skipping malformed inline candidates", zap.Int("line", ev.Line), zap.Error(err))
		}
	}

	if ev.SrcUID == 0 {
		return
	}
	for _, c := range cands {
		s.tr.SeeCandidate(ev.SrcUID, c.Address, c.Kind, ev.MatchUID, ev.Timestamp)
	}
}

func listUIDs(list string) []int64 {
	var out []int64
	for _, f := range strings.FieldsFunc(list, func(r rune) bool { return r < '0' || r > '9' }) {
		if uid, err := strconv.ParseInt(f, 10, 64); err == nil && uid > 0 {
			out = append(out, uid)
		}
	}
	return out
}
