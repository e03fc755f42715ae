package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"happy birthday", []string{Confetti}},
		{"HAPPY BIRTHDAY!!", []string{Confetti}},
		{"Congratulations on the win", []string{Fireworks, Trophy}},
		{"let's party 🎉🎉", []string{Celebration}},
		{"love you ❤️", []string{Hearts}},
		{"🏆", []string{Trophy}},
		{"happy new year, let's celebrate, I love it", []string{Fireworks, Celebration, Hearts}},
		{"good morning", []string{}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text))
		})
	}
}

func TestDetectHasNoDuplicates(t *testing.T) {
	got := Detect("win win winner victory birthday birthday")
	assert.Equal(t, []string{Confetti, Trophy}, got)
}
