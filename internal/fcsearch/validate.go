package fcsearch

import (
	"context"
	"strings"
)

// Validation reports whether a seed handle resolves to a Farcaster user.
type Validation struct {
	Handle        string `json:"handle"`
	Valid         bool   `json:"valid"`
	FID           int64  `json:"fid,omitempty"`
	FollowerCount int    `json:"followerCount,omitempty"`
}

// Validate checks each handle against the user search endpoint. A handle is
// valid when a returned user's username equals it exactly.
func (c *Client) Validate(ctx context.Context, handles []string) ([]Validation, []Evidence) {
	evs := c.EvidenceForHandles(ctx, handles, len(handles))
	out := make([]Validation, 0, len(evs))
	for _, ev := range evs {
		out = append(out, validationFrom(ev))
	}
	return out, evs
}

func validationFrom(ev Evidence) Validation {
	v := Validation{Handle: ev.Handle}
	res, ok := ev.Endpoints[Users]
	if !ok || !res.OK {
		return v
	}
	data, _ := res.Data.(map[string]any)
	users, _ := data["users"].([]map[string]any)
	for _, u := range users {
		name, _ := u["username"].(string)
		if !strings.EqualFold(name, ev.Handle) {
			continue
		}
		v.Valid = true
		if fid, ok := u["fid"].(float64); ok {
			v.FID = int64(fid)
		}
		if fc, ok := u["followerCount"].(float64); ok {
			v.FollowerCount = int(fc)
		}
		break
	}
	return v
}
