// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teleagent/teleagent/internal/llm"
)

// Call records one request made to the fake.
type Call struct {
	Request llm.Request
	Schema  *llm.Schema
}

// Prompt joins the system instruction and every message.
func (c Call) Prompt() string {
	var sb strings.Builder
	sb.WriteString(c.Request.System)
	for _, m := range c.Request.Messages {
		sb.WriteString("\n")
		sb.WriteString(m.Content)
	}
	return sb.String()
}

// Rule answers requests whose prompt contains Match.
type Rule struct {
	Match string
	// Reply is returned from Complete, or decoded by CompleteJSON.
	Reply string
	Err   error
	// Delay holds the answer back, or until the request context is done.
	Delay time.Duration
}

// Fake answers requests from the first matching rule. Requests with no
// matching rule fail.
type Fake struct {
	mu    sync.Mutex
	rules []Rule
	calls []Call

	Image    []byte
	ImageErr error
	Prompts  []string
}

// New creates a fake with the given rules.
func New(rules ...Rule) *Fake {
	return &Fake{rules: rules, Image: []byte("\x89PNG fake")}
}

// On adds a rule and returns the fake.
func (f *Fake) On(match, reply string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, Rule{Match: match, Reply: reply})
	return f
}

// OnJSON adds a rule whose reply is v encoded as JSON.
func (f *Fake) OnJSON(match string, v any) *Fake {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return f.On(match, string(b))
}

// Calls returns a copy of the recorded requests.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsMatching counts recorded requests whose prompt contains s.
func (f *Fake) CallsMatching(s string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c.Prompt(), s) {
			n++
		}
	}
	return n
}

func (f *Fake) answer(ctx context.Context, call Call) (string, error) {
	rule, err := f.match(call)
	if err != nil {
		return "", err
	}
	if rule.Delay > 0 {
		timer := time.NewTimer(rule.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return rule.Reply, rule.Err
}

func (f *Fake) match(call Call) (Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	prompt := call.Prompt()
	for _, r := range f.rules {
		if strings.Contains(prompt, r.Match) {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("llmtest: no rule matches prompt %q", truncate(prompt, 120))
}

func (f *Fake) Complete(ctx context.Context, req llm.Request) (string, error) {
	return f.answer(ctx, Call{Request: req})
}

func (f *Fake) CompleteJSON(ctx context.Context, req llm.Request, schema *llm.Schema, out any) error {
	reply, err := f.answer(ctx, Call{Request: req, Schema: schema})
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(reply), out)
}

func (f *Fake) GenerateImage(_ context.Context, prompt string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	if f.ImageErr != nil {
		return nil, f.ImageErr
	}
	return f.Image, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ llm.Provider = (*Fake)(nil)
