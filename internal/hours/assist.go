package hours

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/pkg/anthropic"
)

const assistSystem = `You classify hawker stall opening hours into meal periods.
Reply with only a JSON array drawn from ["breakfast","lunch","dinner","supper"].
breakfast is 7-10am, lunch 11:30am-2pm, dinner 6-8:30pm, supper 10pm-2am.
Reply [] when the text gives no usable hours.`

// Assisted falls back to an LLM when the rules find nothing in non-empty
// text. Answers are cached per text for the process lifetime.
type Assisted struct {
	client anthropic.Client
	model  string

	mu    sync.Mutex
	cache map[string][]string
}

// NewAssisted wraps client. An empty model uses the Haiku default.
func NewAssisted(client anthropic.Client, model string) *Assisted {
	if model == "" {
		model = "claude-haiku-4-5-20251001"
	}
	return &Assisted{client: client, model: model, cache: map[string][]string{}}
}

// Classify tries the rules first.
func (a *Assisted) Classify(ctx context.Context, openingTimes string) ([]string, error) {
	if cats := Parse(openingTimes); len(cats) > 0 {
		return cats, nil
	}
	text := strings.TrimSpace(openingTimes)
	if text == "" {
		return nil, nil
	}

	a.mu.Lock()
	cached, ok := a.cache[text]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 64,
		System:    assistSystem,
		Prompt:    text,
	})
	if err != nil {
		return nil, eris.Wrap(err, "hours: assist")
	}
	cats, err := parseAnswer(resp.Text)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("hours classified by llm", zap.String("text", text), zap.Strings("categories", cats))
	a.mu.Lock()
	a.cache[text] = cats
	a.mu.Unlock()
	return cats, nil
}

// parseAnswer reads the first JSON array in the reply and keeps known
// categories in canonical order.
func parseAnswer(s string) ([]string, error) {
	start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return nil, eris.Errorf("hours: assist reply has no JSON array: %q", s)
	}
	var raw []string
	if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
		return nil, eris.Wrap(err, "hours: decode assist reply")
	}
	got := map[string]bool{}
	for _, r := range raw {
		got[strings.ToLower(strings.TrimSpace(r))] = true
	}
	var out []string
	for _, c := range All {
		if got[c] {
			out = append(out, c)
		}
	}
	return out, nil
}
