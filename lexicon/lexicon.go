// Package lexicon is the registry of phrase, pattern, and word-set rules
// bound to command handlers.
package lexicon

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/trigger"
)

type Kind int

const (
	KindPhrase Kind = iota
	KindPattern
	KindWordSet
)

// Handler is a registered command callback, invoked with the bot instance
// owning the room the message arrived in.
type Handler func(ctx context.Context, b *bot.Bot, t *trigger.Trigger) error

type Rule struct {
	ID       string
	Kind     Kind
	Phrase   string
	Pattern  *regexp.Regexp
	Words    []string
	Priority int
	Handler  Handler
}

// Registry stores rules in insertion order. Match returns every rule whose
// predicate holds, not just the first or highest priority.
type Registry struct {
	mu    sync.RWMutex
	rules []*Rule
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Hears registers a rule. The matcher is a lowercase phrase matched against
// the trigger's first token, a compiled regular expression tested against the
// raw text, or an ordered list of required words matched as a subset of the
// trigger's token set.
func (r *Registry) Hears(matcher any, handler Handler) (*Rule, error) {
	if handler == nil {
		return nil, fmt.Errorf("lexicon handler is required")
	}
	rule := &Rule{ID: uuid.NewString(), Handler: handler}
	switch m := matcher.(type) {
	case string:
		phrase := strings.ToLower(strings.TrimSpace(m))
		if phrase == "" {
			return nil, fmt.Errorf("lexicon phrase is required")
		}
		rule.Kind = KindPhrase
		rule.Phrase = phrase
	case *regexp.Regexp:
		if m == nil {
			return nil, fmt.Errorf("lexicon pattern is required")
		}
		rule.Kind = KindPattern
		rule.Pattern = m
	case []string:
		words := make([]string, 0, len(m))
		for _, w := range m {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				return nil, fmt.Errorf("lexicon word set contains an empty word")
			}
			words = append(words, w)
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("lexicon word set is required")
		}
		rule.Kind = KindWordSet
		rule.Words = words
	default:
		return nil, fmt.Errorf("lexicon matcher must be string, *regexp.Regexp, or []string, got %T", matcher)
	}

	r.mu.Lock()
	r.rules = append(r.rules, rule)
	r.mu.Unlock()
	return rule, nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rule := range r.rules {
		if rule.ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Match evaluates every rule against the trigger and returns all that hold,
// in insertion order. The returned slice is a snapshot safe to iterate while
// handlers mutate the registry.
func (r *Registry) Match(t *trigger.Trigger) []*Rule {
	if t == nil {
		return nil
	}
	r.mu.RLock()
	rules := append([]*Rule(nil), r.rules...)
	r.mu.RUnlock()

	var out []*Rule
	for _, rule := range rules {
		if rule.matches(t) {
			out = append(out, rule)
		}
	}
	return out
}

func (rule *Rule) matches(t *trigger.Trigger) bool {
	switch rule.Kind {
	case KindPhrase:
		return len(t.Args) > 0 && t.Args[0] == rule.Phrase
	case KindPattern:
		return rule.Pattern.MatchString(t.Raw)
	case KindWordSet:
		for _, w := range rule.Words {
			if _, ok := t.Words[w]; !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
