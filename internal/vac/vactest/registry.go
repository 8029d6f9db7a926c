package vactest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

// RunRegistryTests exercises the vac.Registry contract against a backend.
// newRegistry must return an empty registry.
func RunRegistryTests(t *testing.T, newRegistry func(t *testing.T) vac.Registry) {
	t.Run("absent guild", func(t *testing.T) {
		reg := newRegistry(t)
		for _, f := range vac.Fields {
			ids, ok, err := reg.Get(context.Background(), "g1", f)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, ids)
		}
	})

	t.Run("set and get keep order", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, reg.Set(ctx, "g1", vac.TriggerChannels, []string{"t2", "t1"}))

		ids, ok, err := reg.Get(ctx, "g1", vac.TriggerChannels)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"t2", "t1"}, ids)

		_, ok, err = reg.Get(ctx, "g1", vac.AutoCreatedChannels)
		require.NoError(t, err)
		assert.False(t, ok, "fields are independent")
	})

	t.Run("empty set is present", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, reg.Set(ctx, "g1", vac.AutoCreatedChannels, []string{}))

		ids, ok, err := reg.Get(ctx, "g1", vac.AutoCreatedChannels)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, ids)
	})

	t.Run("unchanged update does not create entry", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		var removed bool
		require.NoError(t, reg.Update(ctx, "g1", vac.TriggerChannels, vac.RemoveID("t1", &removed)))
		assert.False(t, removed)

		_, ok, err := reg.Get(ctx, "g1", vac.TriggerChannels)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("guilds are isolated", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, reg.Update(ctx, "g1", vac.AutoCreatedChannels, vac.AppendID("a1")))
		require.NoError(t, reg.Update(ctx, "g2", vac.AutoCreatedChannels, vac.AppendID("a2")))

		ids, _, err := reg.Get(ctx, "g1", vac.AutoCreatedChannels)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids)
	})

	t.Run("unknown field", func(t *testing.T) {
		reg := newRegistry(t)
		err := reg.Update(context.Background(), "g1", vac.Field("bogus"), vac.AppendID("x"))
		assert.Error(t, err)
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, reg.Update(ctx, "g1", vac.AutoCreatedChannels, vac.AppendID(fmt.Sprintf("a%d", i))))
			}(i)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, reg.Update(ctx, "g1", vac.TriggerChannels, vac.AppendID(fmt.Sprintf("t%d", i))))
			}(i)
		}
		wg.Wait()

		rooms, _, err := reg.Get(ctx, "g1", vac.AutoCreatedChannels)
		require.NoError(t, err)
		assert.Len(t, rooms, n)
		triggers, _, err := reg.Get(ctx, "g1", vac.TriggerChannels)
		require.NoError(t, err)
		assert.Len(t, triggers, n)
	})
}
