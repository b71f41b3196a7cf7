package fcsearch

// trimPayload keeps the few fields the UI and validator look at.
func trimPayload(ep Endpoint, payload any) any {
	m, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	switch ep {
	case Channels:
		if list, ok := m["channels"].([]any); ok {
			return map[string]any{"channels": pick(list, 3, func(c map[string]any) map[string]any {
				return map[string]any{
					"key":           c["key"],
					"name":          c["name"],
					"description":   c["description"],
					"followerCount": c["followerCount"],
					"memberCount":   c["memberCount"],
				}
			})}
		}
	case Users:
		if list, ok := m["users"].([]any); ok {
			return map[string]any{"users": pick(list, 5, func(u map[string]any) map[string]any {
				return map[string]any{
					"fid":           u["fid"],
					"username":      u["username"],
					"displayName":   u["displayName"],
					"followerCount": u["followerCount"],
					"profileBio":    dig(u, "profile", "bio", "text"),
				}
			})}
		}
	case Casts:
		if list, ok := m["casts"].([]any); ok {
			return map[string]any{"casts": pick(list, 5, func(c map[string]any) map[string]any {
				out := map[string]any{
					"hash":      c["hash"],
					"text":      c["text"],
					"timestamp": c["timestamp"],
					"mentions":  c["mentions"],
				}
				if a, ok := c["author"].(map[string]any); ok {
					out["author"] = map[string]any{
						"fid":         a["fid"],
						"username":    a["username"],
						"displayName": a["displayName"],
					}
				}
				return out
			})}
		}
	}
	return payload
}

func pick(list []any, n int, f func(map[string]any) map[string]any) []map[string]any {
	out := make([]map[string]any, 0, min(n, len(list)))
	for _, item := range list {
		if len(out) == n {
			break
		}
		m, _ := item.(map[string]any)
		if m == nil {
			m = map[string]any{}
		}
		out = append(out, f(m))
	}
	return out
}

func dig(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[p]
	}
	return cur
}
