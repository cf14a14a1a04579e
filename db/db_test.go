package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/models"
	"eventhub/service"
	"eventhub/storetest"
)

func newTestDB(t testing.TB) *DB {
	t.Helper()

	db, err := NewDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t testing.TB) service.Store { return newTestDB(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
}

func TestRegisterRollsBackSeatWhenInsertFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	org := storetest.NewUser(t, db, "org")
	a := storetest.NewUser(t, db, "a")
	ev := storetest.NewEvent(t, db, org.ID, 2)

	_, err := db.Exec(`
		CREATE TRIGGER fail_insert BEFORE INSERT ON registrations
		BEGIN
			SELECT RAISE(ABORT, 'injected fault');
		END`)
	require.NoError(t, err)

	err = db.RegisterForEvent(ctx, storetest.NewRegistration(a.ID, ev.ID, time.Now()))
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrCapacityExceeded)

	assert.Equal(t, 0, storetest.AssertConsistent(t, db, ev.ID))

	_, err = db.Exec(`DROP TRIGGER fail_insert`)
	require.NoError(t, err)

	require.NoError(t, db.RegisterForEvent(ctx, storetest.NewRegistration(a.ID, ev.ID, time.Now())))
	assert.Equal(t, 1, storetest.AssertConsistent(t, db, ev.ID))
}

func TestUnregisterKeepsRowWhenReleaseFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	org := storetest.NewUser(t, db, "org")
	a := storetest.NewUser(t, db, "a")
	ev := storetest.NewEvent(t, db, org.ID, 2)

	reg := storetest.NewRegistration(a.ID, ev.ID, time.Now())
	require.NoError(t, db.RegisterForEvent(ctx, reg))

	_, err := db.Exec(`
		CREATE TRIGGER fail_release BEFORE UPDATE OF registration_count ON events
		BEGIN
			SELECT RAISE(ABORT, 'injected fault');
		END`)
	require.NoError(t, err)

	_, err = db.Unregister(ctx, reg.ID, a.ID)
	require.Error(t, err)

	assert.Equal(t, 1, storetest.AssertConsistent(t, db, ev.ID))
	regs, err := db.ListRegistrationsByUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestReconcileRepairsDrift(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	org := storetest.NewUser(t, db, "org")
	a, b := storetest.NewUser(t, db, "a"), storetest.NewUser(t, db, "b")
	drifted := storetest.NewEvent(t, db, org.ID, 5)
	healthy := storetest.NewEvent(t, db, org.ID, 5)

	require.NoError(t, db.RegisterForEvent(ctx, storetest.NewRegistration(a.ID, drifted.ID, time.Now())))
	require.NoError(t, db.RegisterForEvent(ctx, storetest.NewRegistration(b.ID, drifted.ID, time.Now())))
	require.NoError(t, db.RegisterForEvent(ctx, storetest.NewRegistration(a.ID, healthy.ID, time.Now())))

	_, err := db.Exec(`UPDATE events SET registration_count = 4 WHERE id = ?`, drifted.ID)
	require.NoError(t, err)

	n, err := db.ReconcileCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.Equal(t, 2, storetest.AssertConsistent(t, db, drifted.ID))
	assert.Equal(t, 1, storetest.AssertConsistent(t, db, healthy.ID))
}

func TestListEventsEscapesWildcards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	org := storetest.NewUser(t, db, "org")
	storetest.NewEvent(t, db, org.ID, 1)

	found, err := db.ListEvents(ctx, models.EventFilter{Search: "%"})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = db.ListEvents(ctx, models.EventFilter{Search: "gopher"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
