// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "fmt"

// Participant is the locally cached snapshot of one leaderboard entry.
//
// The upstream leaderboard only supports paginated bulk listing, so this snapshot
// is what the read path actually serves. It is written as a whole — there are no
// field-level updates — which keeps "one participant's value" the unit of atomicity.
//
// WHY ID uint64?
// Discord snowflake IDs are 64-bit unsigned integers serialized as strings on the
// wire. We parse them once at the sync boundary and use the numeric form everywhere
// else (primary key, mentions, avatar URLs).
//
// Rank is signed and 1-based. It is only meaningful relative to the most recently
// completed sync cycle: mid-cycle a reader can see a mix of this cycle's and last
// cycle's ranks, which is accepted (eventual, not strict, consistency).
type Participant struct {
	ID            uint64 `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar,omitempty"`        // Discord avatar hash (may be empty)
	MessageCount  uint64 `json:"message_count,omitempty"` // upstream omits this for some guilds
	XP            uint64 `json:"xp"`
	Rank          int64  `json:"rank"`
	LastSynced    int64  `json:"last_synced"` // unix milliseconds of the sync pass that wrote this
}

// Slug returns the "name#discriminator" composite key used for name-based lookup.
// It is written to the name index in the same batch as the record itself, so a
// reader never resolves a slug to a missing record for same-batch writes.
func (p *Participant) Slug() string {
	return fmt.Sprintf("%s#%s", p.Username, p.Discriminator)
}

// AvatarURL returns the CDN URL of the participant's avatar.
//
// Animated avatars have a hash prefixed with "a_" and live at a .gif URL.
// Participants without a custom avatar get one of Discord's five default
// avatars, picked by discriminator modulo 5.
func (p *Participant) AvatarURL() string {
	if p.Avatar == "" {
		var disc uint64
		fmt.Sscanf(p.Discriminator, "%d", &disc)
		return fmt.Sprintf("https://cdn.discordapp.com/embed/avatars/%d.png", disc%5)
	}
	ext := "png"
	if len(p.Avatar) > 2 && p.Avatar[:2] == "a_" {
		ext = "gif"
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%d/%s.%s", p.ID, p.Avatar, ext)
}

// RawPlayer is one entry of the upstream leaderboard listing, exactly as the
// upstream API serializes it. Note the string ID — the sync layer parses it.
type RawPlayer struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	XP            uint64  `json:"xp"`
	Avatar        *string `json:"avatar"`
	MessageCount  *uint64 `json:"message_count"`
}

// PlayerPage is the envelope the upstream listing endpoint returns.
// Ordering inside Players is descending by XP — rank assignment depends on it.
type PlayerPage struct {
	Players []RawPlayer `json:"players"`
}

// LevelUpEvent is produced when a participant's derived level crosses the
// notification threshold between two sync passes.
//
// It is ephemeral: created during reconciliation of a single page, handed to the
// notifier queue, and discarded. There is no retry queue; a dropped or failed
// notification is simply lost.
type LevelUpEvent struct {
	Participant Participant
	PrevLevel   uint64
	NewLevel    uint64
}
