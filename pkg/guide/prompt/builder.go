package prompt

import (
	"errors"
	"fmt"
	"strings"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/compress"
	"devotion-guide-be/pkg/guide/plan"
	"devotion-guide-be/pkg/guide/protocol"
	"devotion-guide-be/pkg/llm"
)

var ErrNoPayload = errors.New("prompt needs a context payload")

const maxTurnRunes = 400

type Profile struct {
	DisplayName string `json:"displayName,omitempty"`
	Language    string `json:"language,omitempty"`
	Translation string `json:"translation,omitempty"`
	Tradition   string `json:"tradition,omitempty"`
	Goals       string `json:"goals,omitempty"`
}

func (p *Profile) empty() bool {
	return p == nil || *p == (Profile{})
}

// ProfileFromEntity maps the stored profile row into the prompt fragment.
func ProfileFromEntity(e *entity.UserProfile) *Profile {
	if e == nil {
		return nil
	}
	return &Profile{
		DisplayName: e.DisplayName,
		Language:    e.Language,
		Translation: e.PreferredTranslation,
		Tradition:   e.Tradition,
		Goals:       e.Goals,
	}
}

type Input struct {
	Entrypoint plan.Entrypoint
	Message    string
	Payload    *compress.Payload
	Profile    *Profile
	Summary    string
	Recent     []entity.ConversationMessage
}

// Prompt is the pair of messages sent to the upstream model.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

func (p Prompt) Messages() []llm.Message {
	return []llm.Message{
		{Role: "system", Content: p.System},
		{Role: "user", Content: p.User},
	}
}

// Build renders the system contract and the user content for one request.
func Build(in Input) (Prompt, error) {
	if in.Payload == nil {
		return Prompt{}, ErrNoPayload
	}
	payload, err := in.Payload.JSON()
	if err != nil {
		return Prompt{}, fmt.Errorf("encode payload: %w", err)
	}

	var system strings.Builder
	writeContract(&system)
	writeActionTable(&system, in.Payload.AllowedActionTypes)
	writeKeyGuide(&system)

	var user strings.Builder
	user.WriteString("<context>\n")
	user.Write(payload)
	user.WriteString("\n</context>\n\n")
	writeProfile(&user, in.Profile)
	writeConversation(&user, in.Summary, in.Recent)
	user.WriteString("<request>\n")
	fmt.Fprintf(&user, "entrypoint: %s\n", in.Entrypoint)
	if msg := strings.TrimSpace(in.Message); msg != "" {
		user.WriteString(msg)
		user.WriteString("\n")
	}
	user.WriteString("</request>")

	return Prompt{System: system.String(), User: user.String()}, nil
}

func writeContract(b *strings.Builder) {
	b.WriteString("You are a gentle devotional guide. Suggest the next small steps for this person using only what is in <context>.\n\n")
	b.WriteString("<output>\n")
	b.WriteString("Write one JSON object per line and nothing else: no prose, no markdown, no code fences.\n")
	b.WriteString("Emit 3 to 5 suggestion lines ranked 1 upward, then exactly one line {\"type\":\"done\"}.\n")
	b.WriteString("Suggestion line fields:\n")
	b.WriteString(`{"type":"suggestion","rank":1,"title":"...","subtitle":"...","normalized_action":"...","grounding":"...","target_label":"...","action":{"type":"...","params":{}},"evidence_ids":["..."],"confidence":0.0}`)
	b.WriteString("\n")
	b.WriteString("- subtitle is a single sentence.\n")
	b.WriteString("- evidence_ids only use \"i\" values from <context>; at least one per suggestion.\n")
	b.WriteString("- grounding is one of: scripture, life_context, reading, highlight, note, conversation, general.\n")
	b.WriteString("- confidence is between 0 and 1.\n")
	b.WriteString("- ref_key is BOOK:CHAPTER[:VERSE[-VERSE]] with a USFM book code, e.g. JHN:3:16 or PSA:23.\n")
	b.WriteString("</output>\n\n")
}

func writeActionTable(b *strings.Builder, allowed []protocol.ActionType) {
	if len(allowed) == 0 {
		allowed = protocol.Vocabulary
	}
	permitted := make(map[protocol.ActionType]bool, len(allowed))
	for _, a := range allowed {
		permitted[a] = true
	}

	b.WriteString("<actions>\n")
	b.WriteString("normalized_action -> allowed action.type [required param]\n")
	for _, na := range protocol.NormalizedActions() {
		rule, _ := protocol.Rule(na)
		var types []string
		for _, t := range rule.Types {
			if permitted[t] {
				types = append(types, string(t))
			}
		}
		if len(types) == 0 {
			continue
		}
		line := fmt.Sprintf("%s -> %s", na, strings.Join(types, " | "))
		if rule.RequiredParam != "" {
			line += fmt.Sprintf(" [%s]", rule.RequiredParam)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("</actions>\n\n")
}

func writeKeyGuide(b *strings.Builder) {
	b.WriteString("<keys>\n")
	b.WriteString("p: plan (in intent, ep entrypoint, rg range, sc scope book, rf scope ref, kw keywords)\n")
	b.WriteString("a: action types you may use\n")
	b.WriteString("c: context groups lc life context, rd reading, hl highlights, nt notes, cv past conversations\n")
	b.WriteString("item: i id, l label, v preview, r ref_key, k kind, pg progress %, n count, d date, s scores (rc recency, se semantic, tm temporal, sm scope, fr freshness)\n")
	b.WriteString("x: items left out for space, by group\n")
	b.WriteString("</keys>")
}

func writeProfile(b *strings.Builder, p *Profile) {
	if p.empty() {
		return
	}
	b.WriteString("<profile>\n")
	field := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(b, "%s: %s\n", name, candidate.Redact(value))
		}
	}
	field("name", p.DisplayName)
	field("language", p.Language)
	field("translation", p.Translation)
	field("tradition", p.Tradition)
	field("goals", p.Goals)
	b.WriteString("</profile>\n\n")
}

func writeConversation(b *strings.Builder, summary string, recent []entity.ConversationMessage) {
	summary = strings.TrimSpace(summary)
	if summary == "" && len(recent) == 0 {
		return
	}
	b.WriteString("<conversation>\n")
	if summary != "" {
		b.WriteString("summary: ")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	for _, msg := range recent {
		fmt.Fprintf(b, "%s: %s\n", msg.Role, candidate.Preview(msg.Content, maxTurnRunes))
	}
	b.WriteString("</conversation>\n\n")
}
