package vac_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	f.set(t, vac.TriggerChannels, "T1", "T-gone")
	f.set(t, vac.AutoCreatedChannels, "A-busy", "A-empty", "A-gone")
	f.gw.AddChannel("T1", 0)
	f.gw.AddChannel("A-busy", 3)
	f.gw.AddChannel("A-empty", 0)

	require.NoError(t, f.svc.Reconcile(context.Background(), guild))

	triggers, _ := f.get(t, vac.TriggerChannels)
	assert.Equal(t, []string{"T1"}, triggers)
	rooms, _ := f.get(t, vac.AutoCreatedChannels)
	assert.Equal(t, []string{"A-busy"}, rooms)

	assert.False(t, f.gw.Exists("A-empty"))
	assert.True(t, f.gw.Exists("A-busy"))
	assert.ElementsMatch(t, []string{
		vac.KeyDeleteTriggerChannel,
		vac.KeyDeleteChannel,
		vac.KeyDeleteAutoCreatedChannel,
	}, f.sink.Keys("info"))
}

func TestReconcileReportsLookupFailures(t *testing.T) {
	f := newFixture(t)
	f.set(t, vac.TriggerChannels, "T1")
	f.gw.ExistsErr = errors.New("gateway offline")

	err := f.svc.Reconcile(context.Background(), guild)
	require.Error(t, err)

	var remote *vac.RemoteError
	assert.ErrorAs(t, err, &remote)
	triggers, _ := f.get(t, vac.TriggerChannels)
	assert.Equal(t, []string{"T1"}, triggers)
}

func TestReconcileAll(t *testing.T) {
	f := newFixture(t)
	f.set(t, vac.AutoCreatedChannels, "A1")
	require.NoError(t, f.reg.Set(context.Background(), "G2", vac.AutoCreatedChannels, []string{"B1"}))

	require.NoError(t, f.svc.ReconcileAll(context.Background(), []string{guild, "G2", "G3"}, 2))

	rooms, _ := f.get(t, vac.AutoCreatedChannels)
	assert.Empty(t, rooms)
	other, _, err := f.reg.Get(context.Background(), "G2", vac.AutoCreatedChannels)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestReconcileSparesRoomStillBeingFilled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := vac.NewService(f.reg, f.gw, f.sink, vac.Options{CreatedAt: f.gw.CreatedAt})
	f.set(t, vac.TriggerChannels, "T1")
	f.gw.AddChannel("T1", 1)

	var reconcileErr error
	f.gw.BeforeMove = func(string) {
		reconcileErr = svc.Reconcile(ctx, guild)
	}

	svc.OnVoiceStateChanged(ctx, vac.VoiceStateChange{
		GuildID:           guild,
		MemberID:          "M1",
		MemberDisplayName: "Alice",
		CurrentChannelID:  "T1",
	})

	require.NoError(t, reconcileErr)
	assert.True(t, f.gw.Exists("room-1"))
	assert.Empty(t, f.gw.Calls(vac.OpDeleteChannel))
	rooms, _ := f.get(t, vac.AutoCreatedChannels)
	assert.Equal(t, []string{"room-1"}, rooms)
	assert.Equal(t, []string{vac.KeyCreateChannel}, f.sink.Keys("info"))
}

func TestReconcileDeletesEmptyRoomAfterGrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	later := time.Now().Add(vac.DefaultRoomGrace + time.Second)
	svc := vac.NewService(f.reg, f.gw, f.sink, vac.Options{
		CreatedAt: f.gw.CreatedAt,
		Now:       func() time.Time { return later },
	})

	roomID, err := f.gw.CreateVoiceChannel(ctx, guild, "", "room", vac.DefaultUserLimit)
	require.NoError(t, err)
	f.set(t, vac.AutoCreatedChannels, roomID)

	require.NoError(t, svc.Reconcile(ctx, guild))

	assert.False(t, f.gw.Exists(roomID))
	rooms, _ := f.get(t, vac.AutoCreatedChannels)
	assert.Empty(t, rooms)
}

func TestStepBIgnoresGrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := vac.NewService(f.reg, f.gw, f.sink, vac.Options{CreatedAt: f.gw.CreatedAt})

	roomID, err := f.gw.CreateVoiceChannel(ctx, guild, "", "room", vac.DefaultUserLimit)
	require.NoError(t, err)
	f.set(t, vac.AutoCreatedChannels, roomID)

	svc.OnVoiceStateChanged(ctx, vac.VoiceStateChange{GuildID: guild, MemberID: "M1", PreviousChannelID: roomID})

	assert.False(t, f.gw.Exists(roomID))
}
