// Package model defines the data models shared by the engagement engine.
package model

import (
	"strings"
	"time"
)

// PacketStatus is the lifecycle state of a red packet.
// Active may move to Completed or Expired; neither ever moves back.
type PacketStatus string

// Red packet statuses.
const (
	StatusActive    PacketStatus = "active"
	StatusCompleted PacketStatus = "completed"
	StatusExpired   PacketStatus = "expired"
)

// Claim records one successful claim against a red packet.
type Claim struct {
	User      string    `db:"user_id"`
	Amount    int64     `db:"amount"` // cents
	ClaimedAt time.Time `db:"claimed_at"`
}

// RedPacket is a sum of money split into a fixed set of shares at creation.
// Shares are handed out in the order they appear in Allocations.
type RedPacket struct {
	ID           string       `db:"id"`
	Channel      string       `db:"room_id"`
	Sender       string       `db:"sender"`
	TotalAmount  int64        `db:"total_amount"` // cents
	ShareCount   int          `db:"share_count"`
	Allocations  []int64      `db:"allocations"`
	Claims       []Claim      `db:"-"`
	ClaimedCount int          `db:"claimed_count"`
	Message      string       `db:"message"`
	Status       PacketStatus `db:"status"`
	CreatedAt    time.Time    `db:"created_at"`
}

// Clone returns a deep copy that shares no slices with p.
func (p *RedPacket) Clone() RedPacket {
	out := *p
	out.Allocations = append([]int64(nil), p.Allocations...)
	out.Claims = append([]Claim(nil), p.Claims...)
	return out
}

// ClaimedAmount returns the sum of all claimed shares in cents.
func (p *RedPacket) ClaimedAmount() int64 {
	var sum int64
	for _, c := range p.Claims {
		sum += c.Amount
	}
	return sum
}

// Message types.
const (
	MessageText      = "text"
	MessageImage     = "image"
	MessageRedPacket = "redpacket"
	MessageSystem    = "system"
)

// IsValidMessageType reports whether t is a known message type.
func IsValidMessageType(t string) bool {
	switch t {
	case MessageText, MessageImage, MessageRedPacket, MessageSystem:
		return true
	}
	return false
}

// Message is a chat message as persisted and broadcast.
type Message struct {
	ID        string    `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"roomId"`
	Sender    string    `db:"sender" json:"sender"`
	Text      string    `db:"text" json:"text"`
	Type      string    `db:"type" json:"type"`
	Triggers  []string  `db:"-" json:"triggers"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Location is an optional geographic position attached to a shake.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Shake is a recorded shake event.
type Shake struct {
	ID         string    `db:"id"`
	User       string    `db:"user_id"`
	Location   *Location `db:"-"`
	DeviceInfo string    `db:"device_info"`
	CreatedAt  time.Time `db:"created_at"`
}

// ScoreEntry is a member and its score inside one ledger key.
type ScoreEntry struct {
	Member string
	Score  int64
}

// LeaderboardEntry is a ranked leaderboard row. Rank is 1-based.
type LeaderboardEntry struct {
	User  string `json:"user"`
	Score int64  `json:"score"`
	Rank  int    `json:"rank"`
}

// KeyPoints is the ledger key accumulating points across all activity.
const KeyPoints = "points"

// DateLayout is the layout of the date suffix of steps keys.
const DateLayout = "2006-01-02"

const stepsKeyPrefix = "steps:"

// Leaderboard kinds.
const (
	BoardPoints = "points"
	BoardSteps  = "steps"
)

// StepsKey returns the ledger key holding step counts for date (YYYY-MM-DD).
func StepsKey(date string) string {
	return stepsKeyPrefix + date
}

// StepsKeyDate extracts the date from a steps key.
func StepsKeyDate(key string) (string, bool) {
	if !strings.HasPrefix(key, stepsKeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, stepsKeyPrefix), true
}
