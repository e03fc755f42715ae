// Package keyword maps message text to celebration animations.
package keyword

import "strings"

// Animations.
const (
	Fireworks   = "fireworks"
	Confetti    = "confetti"
	Celebration = "celebration"
	Hearts      = "hearts"
	Trophy      = "trophy"
)

type rule struct {
	animation string
	phrases   []string
}

// rules are checked in order; the result keeps this order.
var rules = []rule{
	{Fireworks, []string{"congratulations", "happy new year", "celebration"}},
	{Confetti, []string{"happy birthday", "birthday"}},
	{Celebration, []string{"🎉", "celebrate", "party"}},
	{Hearts, []string{"❤️", "💕", "love"}},
	{Trophy, []string{"🏆", "victory", "win", "winner"}},
}

// Detect returns the animations triggered by text, without duplicates.
// Matching is case-insensitive substring matching. The result is never nil.
func Detect(text string) []string {
	lower := strings.ToLower(text)
	out := []string{}
	for _, r := range rules {
		for _, phrase := range r.phrases {
			if strings.Contains(lower, phrase) {
				out = append(out, r.animation)
				break
			}
		}
	}
	return out
}
