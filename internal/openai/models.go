package openai

import (
	"regexp"
	"slices"

	"github.com/samber/lo"
)

var (
	chatAllow  = regexp.MustCompile(`(?i)^(gpt|o[34]|gpt-4|gpt-5)`)
	chatDeny   = regexp.MustCompile(`(?i)(embedding|whisper|text-embedding|tts|audio|image|vision|clip|dall|ft:|omni|sprites)`)
	legacyGPT3 = regexp.MustCompile(`(?i)^gpt-3`)
	unstable   = regexp.MustCompile(`(?i)(preview|transcribe|turbo)`)
)

// FilterChatModels keeps chat-capable model IDs suitable for prompt
// generation, sorted.
func FilterChatModels(ids []string) []string {
	out := lo.Filter(ids, func(id string, _ int) bool {
		if id == "" || legacyGPT3.MatchString(id) || unstable.MatchString(id) {
			return false
		}
		return chatAllow.MatchString(id) && !chatDeny.MatchString(id)
	})
	out = lo.Uniq(out)
	slices.Sort(out)
	return out
}
