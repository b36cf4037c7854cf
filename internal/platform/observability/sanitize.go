package observability

import "unicode"

// sanitize strips control characters and caps length so request-derived
// values cannot inject structure into log lines.
func sanitize(value string, limit int) string {
	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		cleaned = append(cleaned, r)
	}
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return string(cleaned)
}

func sanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitize(route, 180)
}

func sanitizeMethod(method string) string {
	return sanitize(method, 10)
}

func sanitizeUserID(uid string) string {
	return sanitize(uid, 64)
}
