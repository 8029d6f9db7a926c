// Package vactest provides fakes and a registry conformance suite for tests
// of the vac package and its storage backends.
package vactest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

// Call records one Gateway invocation.
type Call struct {
	Op        string
	GuildID   string
	ChannelID string
	MemberID  string
	ParentID  string
	Name      string
	UserLimit int
}

// Gateway is an in-memory vac.Gateway. Channels exist once created or
// added with AddChannel; occupancy is set per channel.
type Gateway struct {
	mu        sync.Mutex
	nextID    int
	calls     []Call
	channels  map[string]bool
	occupancy map[string]int
	created   map[string]time.Time

	CreateErr    error
	DeleteErr    error
	MoveErr      error
	OccupancyErr error
	ExistsErr    error

	// BeforeMove runs at the start of MoveMember, outside the fake's lock.
	BeforeMove func(channelID string)
}

// NewGateway returns an empty fake gateway.
func NewGateway() *Gateway {
	return &Gateway{
		channels:  make(map[string]bool),
		occupancy: make(map[string]int),
		created:   make(map[string]time.Time),
	}
}

// AddChannel marks channelID as existing with the given occupancy.
func (g *Gateway) AddChannel(channelID string, occupancy int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[channelID] = true
	g.occupancy[channelID] = occupancy
}

// SetOccupancy changes the member count of a channel.
func (g *Gateway) SetOccupancy(channelID string, occupancy int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.occupancy[channelID] = occupancy
}

// Exists reports whether channelID currently exists.
func (g *Gateway) Exists(channelID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.channels[channelID]
}

// CreatedAt reports when CreateVoiceChannel made channelID. Channels added
// with AddChannel have no known creation time.
func (g *Gateway) CreatedAt(channelID string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.created[channelID]
	return t, ok
}

// Calls returns the recorded invocations, optionally filtered by op.
func (g *Gateway) Calls(op ...string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Call
	for _, c := range g.calls {
		if len(op) == 0 || slices.Contains(op, c.Op) {
			out = append(out, c)
		}
	}
	return out
}

func (g *Gateway) record(c Call) {
	g.calls = append(g.calls, c)
}

func (g *Gateway) CreateVoiceChannel(_ context.Context, guildID, parentID, name string, userLimit int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: vac.OpCreateChannel, GuildID: guildID, ParentID: parentID, Name: name, UserLimit: userLimit})
	if g.CreateErr != nil {
		return "", g.CreateErr
	}
	g.nextID++
	id := fmt.Sprintf("room-%d", g.nextID)
	g.channels[id] = true
	g.created[id] = time.Now()
	return id, nil
}

func (g *Gateway) DeleteChannel(_ context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: vac.OpDeleteChannel, ChannelID: channelID})
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	if !g.channels[channelID] {
		return vac.ErrChannelNotFound
	}
	delete(g.channels, channelID)
	delete(g.occupancy, channelID)
	return nil
}

func (g *Gateway) MoveMember(_ context.Context, guildID, memberID, channelID string) error {
	if g.BeforeMove != nil {
		g.BeforeMove(channelID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: vac.OpMoveMember, GuildID: guildID, MemberID: memberID, ChannelID: channelID})
	if g.MoveErr != nil {
		return g.MoveErr
	}
	g.occupancy[channelID]++
	return nil
}

func (g *Gateway) ChannelOccupancy(_ context.Context, guildID, channelID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: vac.OpOccupancy, GuildID: guildID, ChannelID: channelID})
	if g.OccupancyErr != nil {
		return 0, g.OccupancyErr
	}
	if !g.channels[channelID] {
		return 0, vac.ErrChannelNotFound
	}
	return g.occupancy[channelID], nil
}

func (g *Gateway) ChannelExists(_ context.Context, guildID, channelID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(Call{Op: vac.OpLookup, GuildID: guildID, ChannelID: channelID})
	if g.ExistsErr != nil {
		return false, g.ExistsErr
	}
	return g.channels[channelID], nil
}

// Entry is one notice received by Sink.
type Entry struct {
	Level     string
	ChannelID string
	Notice    vac.Notice
	Err       error
}

// Sink records every notice it receives.
type Sink struct {
	mu        sync.Mutex
	entries   []Entry
	NotifyErr error
}

func (s *Sink) add(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *Sink) Info(n vac.Notice)             { s.add(Entry{Level: "info", Notice: n}) }
func (s *Sink) Warn(n vac.Notice, err error)  { s.add(Entry{Level: "warn", Notice: n, Err: err}) }
func (s *Sink) Error(n vac.Notice, err error) { s.add(Entry{Level: "error", Notice: n, Err: err}) }

func (s *Sink) Notify(_ context.Context, channelID string, n vac.Notice) error {
	s.add(Entry{Level: "notify", ChannelID: channelID, Notice: n})
	return s.NotifyErr
}

// Entries returns recorded notices, optionally filtered by level.
func (s *Sink) Entries(level ...string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if len(level) == 0 || slices.Contains(level, e.Level) {
			out = append(out, e)
		}
	}
	return out
}

// Keys returns the message keys recorded at the given levels.
func (s *Sink) Keys(level ...string) []string {
	var keys []string
	for _, e := range s.Entries(level...) {
		keys = append(keys, e.Notice.Key)
	}
	return keys
}
