package plan

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// TimeRange bounds how far back candidate fetchers look.
type TimeRange string

const (
	RangeLastDay   TimeRange = "last_day"
	RangeLastWeek  TimeRange = "last_week"
	RangeLastMonth TimeRange = "last_month"
	RangeLastYear  TimeRange = "last_year"
	RangeAllTime   TimeRange = "all_time"
)

func (r TimeRange) Valid() bool {
	switch r {
	case RangeLastDay, RangeLastWeek, RangeLastMonth, RangeLastYear, RangeAllTime:
		return true
	}
	return false
}

// Since returns the lower bound of the range. ok is false for all_time.
func (r TimeRange) Since(now time.Time) (since time.Time, ok bool) {
	switch r {
	case RangeLastDay:
		return now.Add(-24 * time.Hour), true
	case RangeLastWeek:
		return now.AddDate(0, 0, -7), true
	case RangeLastMonth:
		return now.AddDate(0, -1, 0), true
	case RangeLastYear:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

// HalfLife is the age at which a candidate's recency score drops to 0.5.
func (r TimeRange) HalfLife() time.Duration {
	switch r {
	case RangeLastDay:
		return 12 * time.Hour
	case RangeLastWeek:
		return 84 * time.Hour
	case RangeLastMonth:
		return 15 * 24 * time.Hour
	case RangeLastYear:
		return 182 * 24 * time.Hour
	}
	return 90 * 24 * time.Hour
}

type Entrypoint string

const (
	EntrypointHome Entrypoint = "home"
	EntrypointChat Entrypoint = "chat"
)

func (e Entrypoint) Valid() bool {
	return e == EntrypointHome || e == EntrypointChat
}

type Intent string

const (
	IntentGeneral      Intent = "general"
	IntentScripture    Intent = "scripture"
	IntentReflection   Intent = "reflection"
	IntentPrayer       Intent = "prayer"
	IntentRevisit      Intent = "revisit"
	IntentConversation Intent = "conversation"
)

// Plan is the retrieval intent and filters derived from one request.
// It is shown to the model inside the context payload.
type Plan struct {
	Intent        Intent     `json:"intent"`
	Entrypoint    Entrypoint `json:"entrypoint"`
	Range         TimeRange  `json:"range"`
	RangeExplicit bool       `json:"rangeExplicit,omitempty"`
	Scope         string     `json:"scope,omitempty"`
	ScopeRef      string     `json:"scopeRef,omitempty"`
	Keywords      []string   `json:"keywords,omitempty"`
	Query         string     `json:"-"`
}

// HasTemporalHint reports whether the range came from the message itself.
func (p Plan) HasTemporalHint() bool {
	return p.RangeExplicit
}

// HasScope reports whether the message named a book of the Bible.
func (p Plan) HasScope() bool {
	return p.Scope != ""
}

const maxKeywords = 8

var temporalHints = []struct {
	pattern *regexp.Regexp
	rng     TimeRange
}{
	{regexp.MustCompile(`\b(today|tonight|yesterday|this morning|last night)\b`), RangeLastDay},
	{regexp.MustCompile(`\b(this week|last week|past week|recently|lately|these days)\b`), RangeLastWeek},
	{regexp.MustCompile(`\b(this month|last month|past month|past few weeks)\b`), RangeLastMonth},
	{regexp.MustCompile(`\b(this year|last year|past year|past few months)\b`), RangeLastYear},
	{regexp.MustCompile(`\b(all time|ever|always|since the beginning)\b`), RangeAllTime},
}

var intentKeywords = []struct {
	intent Intent
	words  []string
}{
	{IntentPrayer, []string{"pray", "prayer", "praying", "intercede"}},
	{IntentRevisit, []string{"my note", "my notes", "highlight", "highlighted", "highlights", "remember", "revisit", "wrote"}},
	{IntentScripture, []string{"read", "reading", "verse", "verses", "chapter", "passage", "scripture", "bible", "psalm"}},
	{IntentReflection, []string{"reflect", "journal", "feel", "feeling", "struggling", "anxious", "worried", "grateful", "thankful", "lonely"}},
	{IntentConversation, []string{"continue", "conversation", "we talked", "discuss", "last time"}},
}

var (
	wordPattern = regexp.MustCompile(`[\p{L}']+`)
	stopwords   = map[string]bool{
		"about": true, "again": true, "after": true, "also": true, "been": true, "could": true,
		"does": true, "from": true, "have": true, "into": true, "just": true, "like": true,
		"more": true, "much": true, "only": true, "should": true, "some": true, "than": true,
		"that": true, "their": true, "them": true, "then": true, "there": true, "these": true,
		"they": true, "this": true, "what": true, "when": true, "where": true, "which": true,
		"while": true, "with": true, "would": true, "your": true, "want": true, "help": true,
		"today": true, "week": true, "month": true, "year": true, "lately": true, "recently": true,
	}
)

// Derive builds a Plan from the user's message using lexical cues only.
// An empty message on the home entrypoint yields a general plan over defaultRange.
func Derive(message string, entrypoint Entrypoint, defaultRange TimeRange) Plan {
	if !defaultRange.Valid() {
		defaultRange = RangeLastMonth
	}
	p := Plan{
		Intent:     IntentGeneral,
		Entrypoint: entrypoint,
		Range:      defaultRange,
		Query:      strings.TrimSpace(message),
	}

	lower := strings.ToLower(p.Query)
	if lower == "" {
		return p
	}

	for _, hint := range temporalHints {
		if hint.pattern.MatchString(lower) {
			p.Range = hint.rng
			p.RangeExplicit = true
			break
		}
	}

	if ref, ok := findBook(lower); ok {
		p.Scope = ref.book
		p.ScopeRef = ref.refKey()
	}

	p.Intent = detectIntent(lower, p.HasScope())
	p.Keywords = keywords(lower)
	return p
}

func detectIntent(lower string, hasScope bool) Intent {
	for _, ik := range intentKeywords {
		for _, w := range ik.words {
			if containsWord(lower, w) {
				return ik.intent
			}
		}
	}
	if hasScope {
		return IntentScripture
	}
	return IntentGeneral
}

func containsWord(s, word string) bool {
	idx := strings.Index(s, word)
	for idx >= 0 {
		before := idx == 0 || !isLetter(s[idx-1])
		end := idx + len(word)
		after := end == len(s) || !isLetter(s[end])
		if before && after {
			return true
		}
		next := strings.Index(s[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += next + 1
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func keywords(lower string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range wordPattern.FindAllString(lower, -1) {
		w = strings.Trim(w, "'")
		if len([]rune(w)) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	if len(out) > maxKeywords {
		out = out[:maxKeywords]
	}
	return out
}
