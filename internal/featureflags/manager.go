// Package featureflags evaluates runtime switches from the FEATURE_FLAGS setting.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flag names a runtime switch.
type Flag string

const (
	// SupplierMockFallback serves generated items when a supplier cannot.
	SupplierMockFallback Flag = "supplier_mock_fallback"
	// ScheduledRefresh runs the feed refresh loop inside the API process.
	ScheduledRefresh Flag = "scheduled_refresh"
	// FeedCache enables the redis cache for the first feed pages.
	FeedCache Flag = "feed_cache"
)

// Defaults apply when FEATURE_FLAGS does not mention a flag.
var Defaults = map[Flag]string{
	SupplierMockFallback: "on",
	ScheduledRefresh:     "off",
	FeedCache:            "on",
}

// Manager evaluates flags given as "name=value" pairs, for example
// "scheduled_refresh=on,supplier_mock_fallback=off,feed_cache=50%".
type Manager struct {
	flags map[Flag]string
}

// NewManager parses raw on top of Defaults. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	flags := make(map[Flag]string, len(Defaults))
	for name, value := range Defaults {
		flags[name] = value
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		flags[Flag(key)] = value
	}
	return &Manager{flags: flags}
}

// On evaluates a process-wide flag. Percentage rollouts only count at 100%.
func (m *Manager) On(flag Flag) bool {
	if m == nil {
		return false
	}
	enabled, pct := parse(m.flags[flag])
	return enabled || pct >= 100
}

// Enabled evaluates a flag for one user; percentage values bucket users
// deterministically.
func (m *Manager) Enabled(flag Flag, userID uint) bool {
	if m == nil {
		return false
	}
	enabled, pct := parse(m.flags[flag])
	switch {
	case enabled || pct >= 100:
		return true
	case pct <= 0 || userID == 0:
		return false
	}
	return rolloutBucket(flag, userID) < pct
}

// Snapshot returns every flag evaluated for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[string(name)] = m.Enabled(name, userID)
	}
	return out
}

// String renders the effective configuration in a stable order.
func (m *Manager) String() string {
	pairs := make([]string, 0, len(m.flags))
	for name, value := range m.flags {
		pairs = append(pairs, string(name)+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// parse returns (true, 0) for on values and (false, pct) for percentages.
func parse(value string) (bool, int) {
	switch value {
	case "on", "true", "1":
		return true, 0
	case "off", "false", "0", "":
		return false, 0
	}
	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err == nil {
			return false, pct
		}
	}
	return false, 0
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(flag Flag, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", flag, userID)
	return int(h.Sum32() % 100)
}
