// Package notify announces red packet lifecycle events to a Telegram chat.
package notify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"social-engine/internal/model"
)

// Sender delivers a message to a recipient. *tele.Bot implements it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram posts announcements to one chat. Sends happen in the background
// and their failures are only logged.
type Telegram struct {
	sender Sender
	chat   tele.Recipient
	wg     sync.WaitGroup
}

// NewTelegram creates an announcer backed by a bot with token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramWithSender(bot, chatID), nil
}

// NewTelegramWithSender creates an announcer using sender.
func NewTelegramWithSender(sender Sender, chatID int64) *Telegram {
	return &Telegram{sender: sender, chat: &tele.Chat{ID: chatID}}
}

// PacketCreated announces a new red packet.
func (t *Telegram) PacketCreated(p model.RedPacket) {
	t.send(p.ID, FormatCreated(p))
}

// PacketCompleted announces a fully claimed red packet.
func (t *Telegram) PacketCompleted(p model.RedPacket) {
	t.send(p.ID, FormatCompleted(p))
}

// Wait blocks until in-flight announcements finish.
func (t *Telegram) Wait() {
	t.wg.Wait()
}

func (t *Telegram) send(packetID, text string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if _, err := t.sender.Send(t.chat, text, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			log.Warn().Err(err).Str("packet", packetID).Msg("Failed to send Telegram announcement")
		}
	}()
}

// FormatCreated renders the announcement of a new packet.
func FormatCreated(p model.RedPacket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧧 %s sent a red packet in #%s\n", p.Sender, p.Channel)
	fmt.Fprintf(&sb, "%.2f in %d shares\n", model.FromCents(p.TotalAmount), p.ShareCount)
	fmt.Fprintf(&sb, "“%s”", p.Message)
	return sb.String()
}

// FormatCompleted renders the announcement of a fully claimed packet,
// naming the luckiest claimant. Ties go to the earlier claim.
func FormatCompleted(p model.RedPacket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧧 Red packet from %s in #%s is fully claimed (%d/%d)",
		p.Sender, p.Channel, p.ClaimedCount, p.ShareCount)

	if len(p.Claims) > 0 {
		best := p.Claims[0]
		for _, c := range p.Claims[1:] {
			if c.Amount > best.Amount {
				best = c
			}
		}
		fmt.Fprintf(&sb, "\nLuckiest: %s with %.2f", best.User, model.FromCents(best.Amount))
	}
	return sb.String()
}
