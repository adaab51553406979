package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/saupload/saupload/internal/constants"
)

// EventKind identifies which of the five classified outcomes a log line
// produced. Pattern-matching is brittle and version-coupled to the engine
// binary's own log format, so it is concentrated entirely in this one
// small table (spec §9) rather than spread through the driver's state
// machine.
type EventKind string

const (
	EventFileComplete      EventKind = "file_complete"
	EventRateLimit         EventKind = "rate_limit"
	EventMaxTransferReached EventKind = "max_transfer_reached"
	EventFatal             EventKind = "fatal"
	EventIgnore            EventKind = "ignore"
)

// LineEvent is the classified result of one log line.
type LineEvent struct {
	Kind  EventKind
	Path  string
	Size  int64 // 0 when not present on the line
	Kind2 string // matched rate-limit substring, populated only for EventRateLimit
	Delay time.Duration
}

// fileCompletePattern matches "<path>: Copied (new) (1.500 GiB)" /
// "<path>: Moved (1.500 GiB)" style lines: the path is the token
// immediately preceding ": Copied"/": Moved", with an optional size in
// parentheses. Log level prefixes ("INFO  : ") never match here because
// they're followed by whitespace before their colon, not by it directly.
var fileCompletePattern = regexp.MustCompile(`(\S+):\s+(?:Copied|Moved)\b(?:\s*\(new\))?(?:\s*\((\d+(?:\.\d+)?)\s*(B|KiB|MiB|GiB|KB|MB|GB)\))?`)

var fatalSubstrings = []string{
	"FATAL",
	"Fatal error",
	"CRITICAL",
	"panic:",
	"couldn't connect",
	"invalid auth",
}

// RateLimitRule maps a substring to the ban delay it implies.
type RateLimitRule struct {
	Substring string
	Delay     time.Duration
}

// defaultRateLimitRules is the built-in substring table (spec §4.5); a
// configured rate_limits map is unioned with these, never replacing them,
// so operators can only add or override specific substrings.
var defaultRateLimitRules = []RateLimitRule{
	{"userRateLimitExceeded", constants.DailyLimitBanDelay},
	{"dailyLimitExceeded", constants.DailyLimitBanDelay},
	{"403: User rate limit", constants.DefaultBanDelay},
	{"HTTP 403", constants.DefaultBanDelay},
}

// Classifier holds the merged rate-limit substring table used to classify
// one stage's log stream.
type Classifier struct {
	rateLimitRules []RateLimitRule
}

// NewClassifier builds a classifier from the built-in rate-limit rules
// unioned with operator-configured overrides. An override with a substring
// matching a built-in rule replaces only that rule's delay.
func NewClassifier(configured map[string]time.Duration) *Classifier {
	merged := make(map[string]time.Duration, len(defaultRateLimitRules)+len(configured))
	order := make([]string, 0, len(defaultRateLimitRules)+len(configured))
	for _, rule := range defaultRateLimitRules {
		merged[rule.Substring] = rule.Delay
		order = append(order, rule.Substring)
	}
	for substr, delay := range configured {
		if _, exists := merged[substr]; !exists {
			order = append(order, substr)
		}
		merged[substr] = delay
	}

	rules := make([]RateLimitRule, 0, len(order))
	for _, substr := range order {
		rules = append(rules, RateLimitRule{Substring: substr, Delay: merged[substr]})
	}
	return &Classifier{rateLimitRules: rules}
}

// Classify inspects one combined stdout/stderr line and returns exactly one
// event.
func (c *Classifier) Classify(line string) LineEvent {
	for _, rule := range c.rateLimitRules {
		if strings.Contains(line, rule.Substring) {
			return LineEvent{Kind: EventRateLimit, Kind2: rule.Substring, Delay: rule.Delay}
		}
	}

	if strings.Contains(line, "max transfer limit reached") {
		return LineEvent{Kind: EventMaxTransferReached}
	}

	for _, substr := range fatalSubstrings {
		if strings.Contains(line, substr) {
			return LineEvent{Kind: EventFatal}
		}
	}

	if m := fileCompletePattern.FindStringSubmatch(line); m != nil {
		ev := LineEvent{Kind: EventFileComplete, Path: m[1]}
		if m[2] != "" {
			ev.Size = parseSize(m[2], m[3])
		}
		return ev
	}

	return LineEvent{Kind: EventIgnore}
}

func parseSize(numStr, unit string) int64 {
	n, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0
	}
	var mult float64 = 1
	switch strings.ToUpper(unit) {
	case "KB":
		mult = 1000
	case "KIB":
		mult = 1024
	case "MB":
		mult = 1000 * 1000
	case "MIB":
		mult = 1024 * 1024
	case "GB":
		mult = 1000 * 1000 * 1000
	case "GIB":
		mult = 1024 * 1024 * 1024
	}
	return int64(n * mult)
}
