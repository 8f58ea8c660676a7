package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

type Prompt struct {
	Name       string
	Version    int
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// Text flattens the prompt for single-message completion endpoints.
func (p Prompt) Text() string {
	sys := strings.TrimSpace(p.System)
	user := strings.TrimSpace(p.User)
	switch {
	case sys == "":
		return user
	case user == "":
		return sys
	default:
		return sys + "\n\n" + user
	}
}

func (p Prompt) Fingerprint() string {
	h := sha256.Sum256([]byte(
		strings.TrimSpace(p.Name) + "|" +
			strconv.Itoa(p.Version) + "|" +
			strings.TrimSpace(p.System) + "|" +
			strings.TrimSpace(p.User),
	))
	return hex.EncodeToString(h[:])
}
