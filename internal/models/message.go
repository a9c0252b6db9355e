package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a placed world message as returned by the server.
type Message struct {
	ID    uuid.UUID `json:"id"`
	X     float32   `json:"x"`
	Y     float32   `json:"y"`
	Z     float32   `json:"z"`
	Yaw   float32   `json:"yaw"`
	Text  string    `json:"message"`
	Glyph int       `json:"glyph"`
	Emote *Emote    `json:"emote,omitempty"`

	PositiveVotes int `json:"positive_votes"`
	NegativeVotes int `json:"negative_votes"`
	// UserVote is the caller's own vote: -1, 0, or 1.
	UserVote int `json:"user_vote"`

	// Created is used server-side by the density filter and is not part
	// of the wire format.
	Created time.Time `json:"-"`
}

// OwnMessage is a message authored by the caller, as returned by the
// "mine" listing. It carries its location so it can be managed away from
// the territory it was placed in.
type OwnMessage struct {
	Message
	Territory uint32    `json:"territory"`
	Ward      *uint16   `json:"ward,omitempty"`
	Plot      *uint16   `json:"plot,omitempty"`
	Created   time.Time `json:"created"`
	IsHidden  bool      `json:"is_hidden"`
}

// Position returns the message anchor point.
func (m *Message) Position() Vec3 {
	return Vec3{X: m.X, Y: m.Y, Z: m.Z}
}

// Appraisal is the display value for a message's votes, never negative.
func (m *Message) Appraisal() int {
	score := m.PositiveVotes - m.NegativeVotes
	if score < 0 {
		return 0
	}
	return score
}

// ApplyVote records a vote optimistically after the server accepted it:
// the previous vote's tally is retracted and the new one applied in one
// logical update.
func (m *Message) ApplyVote(way int) {
	switch m.UserVote {
	case 1:
		m.PositiveVotes--
	case -1:
		m.NegativeVotes--
	}

	switch way {
	case 1:
		m.PositiveVotes++
	case -1:
		m.NegativeVotes++
	}

	m.UserVote = way
}

// Emote is the gesture descriptor optionally attached to a message: the
// pose the author held plus a full appearance snapshot, enough to
// reconstruct a ghost of them performing it.
type Emote struct {
	// Action is the emote action id. It is resolved to a pose timeline
	// through a client-side lookup and may be unknown to older clients.
	Action uint32 `json:"action"`

	Customize []byte       `json:"customise,omitempty"`
	Equipment []uint32     `json:"equipment,omitempty"`
	Weapons   []WeaponSlot `json:"weapons,omitempty"`
	Glasses   []uint16     `json:"glasses,omitempty"`

	HatHidden    bool `json:"hat_hidden"`
	VisorToggled bool `json:"visor_toggled"`
	WeaponHidden bool `json:"weapon_hidden"`
}

// WeaponSlot is one weapon model reference in an appearance snapshot.
type WeaponSlot struct {
	ModelID uint64 `json:"model_id"`
	Flags   uint16 `json:"flags"`
}

// MessageRequest is the body for writing a new message. Text is composed
// server-side from pack/template/word indices.
type MessageRequest struct {
	Territory uint32  `json:"territory"`
	Ward      *uint16 `json:"ward,omitempty"`
	Plot      *uint16 `json:"plot,omitempty"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
	Yaw       float32 `json:"yaw"`

	PackID    uuid.UUID `json:"pack_id"`
	Template1 int       `json:"template_1"`
	Word1List *int      `json:"word_1_list,omitempty"`
	Word1Word *int      `json:"word_1_word,omitempty"`

	Conjunction *int `json:"conjunction,omitempty"`
	Template2   *int `json:"template_2,omitempty"`
	Word2List   *int `json:"word_2_list,omitempty"`
	Word2Word   *int `json:"word_2_word,omitempty"`

	Glyph int    `json:"glyph"`
	Emote *Emote `json:"emote,omitempty"`
}

// Account represents an authenticated user as seen by the server.
type Account struct {
	ID       int64
	Extra    int64
	LastSeen time.Time
}
