package runtime

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/trigger"
)

// PhrasebookEntry is one canned exchange: an exact command phrase and the
// reply the room gets back.
type PhrasebookEntry struct {
	Phrase string `yaml:"phrase"`
	Reply  string `yaml:"reply"`
}

// LoadPhrasebook registers an exact-phrase rule for every entry in the YAML
// file at path. Returns the number of rules registered.
func (r *Runtime) LoadPhrasebook(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read phrasebook: %w", err)
	}
	var entries []PhrasebookEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("parse phrasebook: %w", err)
	}
	registered := 0
	for i, entry := range entries {
		if entry.Phrase == "" || entry.Reply == "" {
			return registered, fmt.Errorf("phrasebook entry %d: phrase and reply are both required", i)
		}
		reply := entry.Reply
		_, err := r.Hears(entry.Phrase, func(ctx context.Context, b *bot.Bot, t *trigger.Trigger) error {
			return b.Say(ctx, "%s", reply)
		})
		if err != nil {
			return registered, fmt.Errorf("phrasebook entry %q: %w", entry.Phrase, err)
		}
		registered++
	}
	r.logger.Info("phrasebook_loaded", "path", path, "rules", registered)
	return registered, nil
}
