package dispatcher

import (
	"os"
	"strings"
)

// HostGate restricts reload to one designated machine when several bots share a
// chat. Aliases map lowercase logical environment names ("local", "cloud") to
// hostnames.
type HostGate struct {
	Enabled bool
	Aliases map[string]string

	// Hostname defaults to os.Hostname.
	Hostname func() (string, error)
}

// Allows reports whether this host should act on a reload addressed to target.
// A disabled gate allows everything.
func (g HostGate) Allows(target string) bool {
	if !g.Enabled {
		return true
	}
	if target == "" {
		return false
	}

	hostname := g.Hostname
	if hostname == nil {
		hostname = os.Hostname
	}

	current, err := hostname()
	if err != nil {
		return false
	}

	if target == current {
		return true
	}

	// config loaders lowercase map keys, aliases match in any case
	alias, ok := g.Aliases[strings.ToLower(target)]
	return ok && alias == current
}
