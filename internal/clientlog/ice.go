package clientlog

import (
	"strings"

	"github.com/valyala/fastjson"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/pkg/faflog/pattern"
)

var iceMessages fastjson.ParserPool

type candidate struct {
	Address string
	Kind    model.CandidateKind
}

// iceMessage is the part of an ICE message the store cares about.
type iceMessage struct {
	SrcUID     int64
	DstUID     int64
	Candidates []candidate
}

// parseICE decodes a JSON ICE message. Related addresses are kept with kind
// unknown since their role depends on the candidate type.
func parseICE(payload string) (*iceMessage, error) {
	p := iceMessages.Get()
	defer iceMessages.Put(p)

	v, err := p.Parse(payload)
	if err != nil {
		return nil, err
	}
	msg := &iceMessage{SrcUID: v.GetInt64("srcId"), DstUID: v.GetInt64("destId")}
	for _, c := range v.GetArray("candidates") {
		ip := strings.TrimSpace(string(c.GetStringBytes("ip")))
		if ip != "" {
			msg.Candidates = append(msg.Candidates, candidate{
				Address: ip,
				Kind:    model.ParseCandidateType(string(c.GetStringBytes("type"))),
			})
		}
		if rel := strings.TrimSpace(string(c.GetStringBytes("relAddr"))); rel != "" && rel != ip {
			msg.Candidates = append(msg.Candidates, candidate{Address: rel, Kind: model.KindUnknown})
		}
	}
	return msg, nil
}

// inlineCandidates scans a non-JSON payload for ip=..., port=..., type=... triples.
func inlineCandidates(lib *pattern.Library, payload string) ([]candidate, error) {
	caps, err := lib.MatchAll("ice_candidate_inline", payload)
	out := make([]candidate, 0, len(caps))
	for _, c := range caps {
		out = append(out, candidate{
			Address: c.String("ip"),
			Kind:    model.ParseCandidateType(c.String("type")),
		})
	}
	return out, err
}
