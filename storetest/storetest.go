// Package storetest holds the behaviour every store backend must share. Each
// backend runs Run from its own tests with a factory for fresh stores.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"

	"eventhub/models"
	"eventhub/service"
)

// Factory returns an empty, migrated store. It is called once per subtest.
type Factory func(t testing.TB) service.Store

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// NewUser stores a user and returns it.
func NewUser(t testing.TB, s service.Store, name string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		PasswordHash: "x",
		CreatedAt:    epoch,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// NewEvent stores a published event with the given capacity.
func NewEvent(t testing.TB, s service.Store, organizerID string, capacity int) *models.Event {
	t.Helper()
	e := &models.Event{
		ID:          uuid.NewString(),
		Title:       "The Big GopherCon",
		Description: "Concurrency all day",
		Category:    models.CategoryConference,
		Date:        epoch.Add(30 * 24 * time.Hour),
		Time:        "09:00 AM",
		Location:    "Berlin",
		Image:       models.DefaultImage,
		Capacity:    capacity,
		OrganizerID: organizerID,
		Status:      models.StatusPublished,
		CreatedAt:   epoch,
		UpdatedAt:   epoch,
	}
	require.NoError(t, s.CreateEvent(context.Background(), e))
	return e
}

// NewRegistration builds an unsaved registration.
func NewRegistration(userID, eventID string, at time.Time) *models.Registration {
	return &models.Registration{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventID:   eventID,
		Name:      "Gopher",
		Email:     "gopher@example.com",
		Phone:     "555-0100",
		CreatedAt: at,
	}
}

// AssertConsistent checks registration_count against the live rows.
func AssertConsistent(t testing.TB, s service.Store, eventID string) int {
	t.Helper()
	ctx := context.Background()

	ev, err := s.GetEvent(ctx, eventID)
	require.NoError(t, err)

	rows, err := s.CountRegistrations(ctx, eventID)
	require.NoError(t, err)

	require.Equal(t, rows, ev.RegistrationCount, "registration_count must match live registrations")
	require.LessOrEqual(t, ev.RegistrationCount, ev.Capacity)
	require.GreaterOrEqual(t, ev.RegistrationCount, 0)
	return ev.RegistrationCount
}

// Run executes the shared suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Events", func(t *testing.T) { testEvents(t, newStore(t)) })
	t.Run("UpdateEvent", func(t *testing.T) { testUpdateEvent(t, newStore(t)) })
	t.Run("DeleteEvent", func(t *testing.T) { testDeleteEvent(t, newStore(t)) })
	t.Run("Scenario", func(t *testing.T) { testScenario(t, newStore(t)) })
	t.Run("Uniqueness", func(t *testing.T) { testUniqueness(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("UnregisterForbidden", func(t *testing.T) { testUnregisterForbidden(t, newStore(t)) })
	t.Run("Listings", func(t *testing.T) { testListings(t, newStore(t)) })
	t.Run("ConcurrentRegistrations", func(t *testing.T) { testConcurrentRegistrations(t, newStore(t)) })
	t.Run("RaceForLastSeat", func(t *testing.T) { testRaceForLastSeat(t, newStore(t)) })
	t.Run("ConcurrentDuplicate", func(t *testing.T) { testConcurrentDuplicate(t, newStore(t), 10) })
	t.Run("ConcurrentDuplicateLastSeat", func(t *testing.T) { testConcurrentDuplicate(t, newStore(t), 1) })
	t.Run("ConcurrentChurn", func(t *testing.T) { testConcurrentChurn(t, newStore(t)) })
	t.Run("CapacityProperty", func(t *testing.T) { testCapacityProperty(t, newStore) })
	t.Run("ReconcileNoDrift", func(t *testing.T) { testReconcileNoDrift(t, newStore(t)) })
}

func testUsers(t *testing.T, s service.Store) {
	ctx := context.Background()
	u := NewUser(t, s, "ann")

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	got, err = s.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := *u
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), models.ErrEmailTaken)

	_, err = s.GetUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func testEvents(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")

	ev := NewEvent(t, s, org.ID, 3)
	got, err := s.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Title, got.Title)
	assert.Equal(t, 0, got.RegistrationCount)
	require.NotNil(t, got.Organizer)
	assert.Equal(t, org.Name, got.Organizer.Name)

	older := NewEvent(t, s, org.ID, 1)
	_, err = s.UpdateEvent(ctx, older.ID, org.ID, models.EventPatch{Title: "Rust Workshop", Category: models.CategoryWorkshop})
	require.NoError(t, err)

	all, err := s.ListEvents(ctx, models.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	workshops, err := s.ListEvents(ctx, models.EventFilter{Category: models.CategoryWorkshop})
	require.NoError(t, err)
	require.Len(t, workshops, 1)
	assert.Equal(t, older.ID, workshops[0].ID)

	found, err := s.ListEvents(ctx, models.EventFilter{Search: "rust"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Rust Workshop", found[0].Title)

	found, err = s.ListEvents(ctx, models.EventFilter{Search: "CONCURRENCY"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	page, err := s.ListEvents(ctx, models.EventFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	_, err = s.GetEvent(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func testUpdateEvent(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	other := NewUser(t, s, "other")
	ev := NewEvent(t, s, org.ID, 2)

	_, err := s.UpdateEvent(ctx, ev.ID, other.ID, models.EventPatch{Title: "Hijacked"})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = s.UpdateEvent(ctx, uuid.NewString(), org.ID, models.EventPatch{Title: "Nope"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	for i := 0; i < 2; i++ {
		u := NewUser(t, s, "attendee")
		require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(u.ID, ev.ID, epoch)))
	}

	_, err = s.UpdateEvent(ctx, ev.ID, org.ID, models.EventPatch{Capacity: 1})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	updated, err := s.UpdateEvent(ctx, ev.ID, org.ID, models.EventPatch{Capacity: 5, Status: models.StatusOngoing})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Capacity)
	assert.Equal(t, models.StatusOngoing, updated.Status)
	assert.Equal(t, 2, updated.RegistrationCount)
	AssertConsistent(t, s, ev.ID)
}

func testDeleteEvent(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	other := NewUser(t, s, "other")
	ev := NewEvent(t, s, org.ID, 2)
	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(other.ID, ev.ID, epoch)))

	assert.ErrorIs(t, s.DeleteEvent(ctx, ev.ID, other.ID), models.ErrForbidden)
	require.NoError(t, s.DeleteEvent(ctx, ev.ID, org.ID))

	_, err := s.GetEvent(ctx, ev.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	regs, err := s.ListRegistrationsByUser(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, regs)

	assert.ErrorIs(t, s.DeleteEvent(ctx, ev.ID, org.ID), models.ErrNotFound)
}

// testScenario walks capacity 2: A, B in, C refused, A out, C in.
func testScenario(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	a, b, c := NewUser(t, s, "a"), NewUser(t, s, "b"), NewUser(t, s, "c")
	ev := NewEvent(t, s, org.ID, 2)

	regA := NewRegistration(a.ID, ev.ID, epoch)
	require.NoError(t, s.RegisterForEvent(ctx, regA))
	require.NotNil(t, regA.Event)
	assert.Equal(t, 1, regA.Event.RegistrationCount)
	assert.Equal(t, 1, AssertConsistent(t, s, ev.ID))

	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(b.ID, ev.ID, epoch.Add(time.Minute))))
	assert.Equal(t, 2, AssertConsistent(t, s, ev.ID))

	err := s.RegisterForEvent(ctx, NewRegistration(c.ID, ev.ID, epoch.Add(2*time.Minute)))
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.Equal(t, 2, AssertConsistent(t, s, ev.ID))

	gone, err := s.Unregister(ctx, regA.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, regA.ID, gone.ID)
	assert.Equal(t, 1, AssertConsistent(t, s, ev.ID))

	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(c.ID, ev.ID, epoch.Add(3*time.Minute))))
	assert.Equal(t, 2, AssertConsistent(t, s, ev.ID))
}

func testUniqueness(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	a := NewUser(t, s, "a")
	ev := NewEvent(t, s, org.ID, 10)

	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(a.ID, ev.ID, epoch)))
	err := s.RegisterForEvent(ctx, NewRegistration(a.ID, ev.ID, epoch.Add(time.Second)))
	assert.ErrorIs(t, err, models.ErrAlreadyRegistered)
	assert.Equal(t, 1, AssertConsistent(t, s, ev.ID))

	// A full event still reports the duplicate rather than the capacity.
	full := NewEvent(t, s, org.ID, 1)
	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(a.ID, full.ID, epoch)))
	err = s.RegisterForEvent(ctx, NewRegistration(a.ID, full.ID, epoch))
	assert.ErrorIs(t, err, models.ErrAlreadyRegistered)
}

func testNotFound(t *testing.T, s service.Store) {
	ctx := context.Background()
	a := NewUser(t, s, "a")

	err := s.RegisterForEvent(ctx, NewRegistration(a.ID, uuid.NewString(), epoch))
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.Unregister(ctx, uuid.NewString(), a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func testUnregisterForbidden(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	a, b := NewUser(t, s, "a"), NewUser(t, s, "b")
	ev := NewEvent(t, s, org.ID, 3)

	reg := NewRegistration(a.ID, ev.ID, epoch)
	require.NoError(t, s.RegisterForEvent(ctx, reg))

	_, err := s.Unregister(ctx, reg.ID, b.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, 1, AssertConsistent(t, s, ev.ID))

	regs, err := s.ListRegistrationsByUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)

	// A second unregister of the same row is a clean NotFound.
	_, err = s.Unregister(ctx, reg.ID, a.ID)
	require.NoError(t, err)
	_, err = s.Unregister(ctx, reg.ID, a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 0, AssertConsistent(t, s, ev.ID))
}

func testListings(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	a, b := NewUser(t, s, "a"), NewUser(t, s, "b")
	ev1 := NewEvent(t, s, org.ID, 5)
	ev2 := NewEvent(t, s, org.ID, 5)

	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(a.ID, ev1.ID, epoch)))
	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(a.ID, ev2.ID, epoch.Add(time.Hour))))
	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(b.ID, ev1.ID, epoch.Add(2*time.Hour))))

	mine, err := s.ListRegistrationsByUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, ev2.ID, mine[0].EventID, "newest first")
	assert.Equal(t, ev1.ID, mine[1].EventID)
	require.NotNil(t, mine[0].Event)
	assert.Equal(t, ev2.Title, mine[0].Event.Title)

	attendees, err := s.ListRegistrationsByEvent(ctx, ev1.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 2)
	assert.Equal(t, b.ID, attendees[0].UserID, "newest first")
	require.NotNil(t, attendees[0].User)
	assert.Equal(t, b.Email, attendees[0].User.Email)

	none, err := s.ListRegistrationsByUser(ctx, org.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// testConcurrentRegistrations fires 100 goroutines at 5 seats.
func testConcurrentRegistrations(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")

	const (
		totalCapacity = 5
		numRequests   = 100
	)
	ev := NewEvent(t, s, org.ID, totalCapacity)

	users := make([]*models.User, numRequests)
	for i := range users {
		users[i] = NewUser(t, s, fmt.Sprintf("gopher%d", i))
	}

	var successCount, soldOutCount, errorCount int32
	var wg sync.WaitGroup
	wg.Add(numRequests)

	for i := 0; i < numRequests; i++ {
		go func(u *models.User) {
			defer wg.Done()

			err := s.RegisterForEvent(ctx, NewRegistration(u.ID, ev.ID, time.Now()))
			switch {
			case err == nil:
				atomic.AddInt32(&successCount, 1)
			case errors.Is(err, models.ErrCapacityExceeded):
				atomic.AddInt32(&soldOutCount, 1)
			default:
				t.Logf("Unexpected error for %s: %v", u.Name, err)
				atomic.AddInt32(&errorCount, 1)
			}
		}(users[i])
	}

	wg.Wait()

	assert.EqualValues(t, totalCapacity, successCount)
	assert.EqualValues(t, numRequests-totalCapacity, soldOutCount)
	assert.Zero(t, errorCount)
	assert.Equal(t, totalCapacity, AssertConsistent(t, s, ev.ID))
}

// testRaceForLastSeat runs two users at a single seat many times over.
func testRaceForLastSeat(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")

	for round := 0; round < 20; round++ {
		ev := NewEvent(t, s, org.ID, 1)
		a, b := NewUser(t, s, "a"), NewUser(t, s, "b")

		results := make([]error, 2)
		var g errgroup.Group
		for i, u := range []*models.User{a, b} {
			g.Go(func() error {
				results[i] = s.RegisterForEvent(ctx, NewRegistration(u.ID, ev.ID, time.Now()))
				return nil
			})
		}
		require.NoError(t, g.Wait())

		var won, full int
		for _, err := range results {
			switch {
			case err == nil:
				won++
			case errors.Is(err, models.ErrCapacityExceeded):
				full++
			default:
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		require.Equal(t, 1, won, "round %d", round)
		require.Equal(t, 1, full, "round %d", round)
		AssertConsistent(t, s, ev.ID)
	}
}

// testConcurrentDuplicate sends the same user's registration many times at once.
// With capacity 1 the losers find the event full, and must still be told they
// are already registered.
func testConcurrentDuplicate(t *testing.T, s service.Store, capacity int) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	a := NewUser(t, s, "a")
	ev := NewEvent(t, s, org.ID, capacity)

	const attempts = 20
	var ok, dup atomic.Int32
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			err := s.RegisterForEvent(ctx, NewRegistration(a.ID, ev.ID, time.Now()))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, models.ErrAlreadyRegistered):
				dup.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, attempts-1, dup.Load())
	assert.Equal(t, 1, AssertConsistent(t, s, ev.ID))
}

// testConcurrentChurn mixes registrations and cancellations on one event.
func testConcurrentChurn(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	ev := NewEvent(t, s, org.ID, 3)

	var g errgroup.Group
	for i := 0; i < 12; i++ {
		u := NewUser(t, s, fmt.Sprintf("churn%d", i))
		g.Go(func() error {
			for j := 0; j < 5; j++ {
				reg := NewRegistration(u.ID, ev.ID, time.Now())
				err := s.RegisterForEvent(ctx, reg)
				if errors.Is(err, models.ErrCapacityExceeded) {
					continue
				}
				if err != nil {
					return err
				}
				if _, err := s.Unregister(ctx, reg.ID, u.ID); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 0, AssertConsistent(t, s, ev.ID))
}

// testCapacityProperty drives random register/unregister sequences against a
// reference model of the active registrations.
func testCapacityProperty(t *testing.T, newStore Factory) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newStore(t)
		ctx := context.Background()

		capacity := rapid.IntRange(1, 4).Draw(rt, "capacity")
		numUsers := rapid.IntRange(1, 6).Draw(rt, "users")

		org := NewUser(t, s, "org")
		ev := NewEvent(t, s, org.ID, capacity)
		users := make([]*models.User, numUsers)
		for i := range users {
			users[i] = NewUser(t, s, fmt.Sprintf("u%d", i))
		}

		active := map[int]string{} // user index -> registration id
		before := 0

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for step := 0; step < steps; step++ {
			i := rapid.IntRange(0, numUsers-1).Draw(rt, "user")

			if rapid.Bool().Draw(rt, "register") {
				reg := NewRegistration(users[i].ID, ev.ID, epoch.Add(time.Duration(step)*time.Second))
				err := s.RegisterForEvent(ctx, reg)
				_, already := active[i]
				switch {
				case already:
					if !errors.Is(err, models.ErrAlreadyRegistered) {
						rt.Fatalf("step %d: want ErrAlreadyRegistered, got %v", step, err)
					}
				case len(active) >= capacity:
					if !errors.Is(err, models.ErrCapacityExceeded) {
						rt.Fatalf("step %d: want ErrCapacityExceeded, got %v", step, err)
					}
				default:
					if err != nil {
						rt.Fatalf("step %d: register: %v", step, err)
					}
					active[i] = reg.ID
				}
			} else {
				regID, ok := active[i]
				if !ok {
					continue
				}
				other := (i + 1) % numUsers
				if other != i {
					if _, err := s.Unregister(ctx, regID, users[other].ID); !errors.Is(err, models.ErrForbidden) {
						rt.Fatalf("step %d: want ErrForbidden, got %v", step, err)
					}
				}
				if _, err := s.Unregister(ctx, regID, users[i].ID); err != nil {
					rt.Fatalf("step %d: unregister: %v", step, err)
				}
				delete(active, i)
			}

			got, err := s.GetEvent(ctx, ev.ID)
			if err != nil {
				rt.Fatalf("get event: %v", err)
			}
			rows, err := s.CountRegistrations(ctx, ev.ID)
			if err != nil {
				rt.Fatalf("count: %v", err)
			}
			if got.RegistrationCount != len(active) || rows != len(active) {
				rt.Fatalf("step %d: count=%d rows=%d model=%d", step, got.RegistrationCount, rows, len(active))
			}
			if got.RegistrationCount > capacity {
				rt.Fatalf("step %d: count %d exceeds capacity %d", step, got.RegistrationCount, capacity)
			}
			if d := got.RegistrationCount - before; d < -1 || d > 1 {
				rt.Fatalf("step %d: count moved by %d", step, d)
			}
			before = got.RegistrationCount
		}
	})
}

func testReconcileNoDrift(t *testing.T, s service.Store) {
	ctx := context.Background()
	org := NewUser(t, s, "org")
	a := NewUser(t, s, "a")
	ev := NewEvent(t, s, org.ID, 2)
	require.NoError(t, s.RegisterForEvent(ctx, NewRegistration(a.ID, ev.ID, epoch)))

	n, err := s.ReconcileCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, AssertConsistent(t, s, ev.ID))
}
