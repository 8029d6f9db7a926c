// Package vac implements Voice Auto Creation: joining a trigger voice channel
// spawns a personal room, and rooms are removed once they empty out.
//
// Service holds no state of its own. Every decision re-reads the Registry, so
// several processes or goroutines may handle events for the same guild.
package vac

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultRoomNameFormat = "%s's Room"
	DefaultUserLimit      = 99
	DefaultRoomGrace      = 30 * time.Second

	// maxChannelNameLength is the platform's limit in characters.
	maxChannelNameLength = 100
)

// Options tunes the rooms created by the service.
type Options struct {
	// RoomNameFormat is a fmt format with a single %s for the display name.
	RoomNameFormat string
	UserLimit      int

	// RoomGrace keeps rooms younger than this out of Reconcile's empty-room
	// pass: a concurrent handler may still be moving the member in.
	RoomGrace time.Duration
	// CreatedAt reports when a channel was created. Nil treats every room
	// as old enough.
	CreatedAt func(channelID string) (time.Time, bool)
	Now       func() time.Time
}

// Service reacts to voice-state and channel-deletion events.
type Service struct {
	registry  Registry
	gateway   Gateway
	sink      Sink
	nameFmt   string
	userLimit int
	grace     time.Duration
	createdAt func(channelID string) (time.Time, bool)
	now       func() time.Time
}

// NewService wires a Service. Zero options fall back to the defaults.
func NewService(registry Registry, gateway Gateway, sink Sink, opts Options) *Service {
	if opts.RoomNameFormat == "" || strings.Count(opts.RoomNameFormat, "%s") != 1 {
		opts.RoomNameFormat = DefaultRoomNameFormat
	}
	if opts.UserLimit <= 0 {
		opts.UserLimit = DefaultUserLimit
	}
	if opts.RoomGrace <= 0 {
		opts.RoomGrace = DefaultRoomGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		registry:  registry,
		gateway:   gateway,
		sink:      sink,
		nameFmt:   opts.RoomNameFormat,
		userLimit: opts.UserLimit,
		grace:     opts.RoomGrace,
		createdAt: opts.CreatedAt,
		now:       opts.Now,
	}
}

// isFresh reports whether channelID was created within the grace period.
func (s *Service) isFresh(channelID string) bool {
	if s.createdAt == nil {
		return false
	}
	created, ok := s.createdAt(channelID)
	return ok && s.now().Sub(created) < s.grace
}

// RoomName returns the channel name for a member's room.
func (s *Service) RoomName(displayName, memberID string) string {
	if strings.TrimSpace(displayName) == "" {
		displayName = memberID
	}
	name := fmt.Sprintf(s.nameFmt, displayName)
	if utf8.RuneCountInString(name) <= maxChannelNameLength {
		return name
	}
	return string([]rune(name)[:maxChannelNameLength])
}
