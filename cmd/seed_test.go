package cmd

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"eventhub/config"
	"eventhub/models"
)

const fixturesYAML = `
users:
  - name: Olive Organizer
    email: Olive@Example.com
    password: hunter22
  - name: Ray
    email: ray@example.com
    password: hunter22
events:
  - organizer: olive@example.com
    title: Go Meetup
    description: Monthly gophers
    category: meetup
    date: 2026-12-01T00:00:00Z
    time: "18:00"
    location: Online
    capacity: 25
  - organizer: olive@example.com
    title: Testing Workshop
    description: Table tests all day
    category: workshop
    date: 2026-12-05T00:00:00Z
    time: "09:30"
    location: Berlin
    capacity: 10
`

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store, err := openStore(ctx, config.Database{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var fx fixtures
	require.NoError(t, yaml.Unmarshal([]byte(fixturesYAML), &fx))
	require.Len(t, fx.Events, 2)

	require.NoError(t, seed(ctx, store, fx, zap.NewNop()))

	olive, err := store.GetUserByEmail(ctx, "olive@example.com")
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, olive.ID, ev.OrganizerID)
		assert.Equal(t, models.StatusPublished, ev.Status)
		assert.Equal(t, models.DefaultImage, ev.Image)
	}

	// Existing accounts are reused on a second run.
	require.NoError(t, seed(ctx, store, fixtures{Users: fx.Users}, zap.NewNop()))
	again, err := store.GetUserByEmail(ctx, "olive@example.com")
	require.NoError(t, err)
	assert.Equal(t, olive.ID, again.ID)
}

func TestSeedUnknownOrganizer(t *testing.T) {
	ctx := context.Background()
	store, err := openStore(ctx, config.Database{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	err = seed(ctx, store, fixtures{Events: []fixtureEvent{{Organizer: "ghost@example.com", Title: "Nope"}}}, zap.NewNop())
	assert.ErrorContains(t, err, "ghost@example.com")
}
