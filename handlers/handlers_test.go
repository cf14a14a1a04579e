package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"eventhub/auth"
	"eventhub/db"
	"eventhub/middleware"
	"eventhub/models"
	"eventhub/service"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := db.NewDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate())

	log := zap.NewNop()
	tokens := auth.NewTokens("test-secret", time.Hour)
	authSvc := service.NewAuthService(store, tokens, log, service.WithBcryptCost(bcrypt.MinCost))

	h := &Handlers{
		Auth:          authSvc,
		Events:        service.NewEventService(store),
		Registrations: service.NewRegistrationService(store, nil, log),
		Log:           log,
	}
	router := NewRouter(h, middleware.Authenticate(tokens))

	srv := httptest.NewServer(middleware.Chain(router, middleware.Recovery(log)))
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv}
}

// do sends body as JSON and decodes the JSON response into out when non-nil.
func (ts *testServer) do(method, path, token string, body, out any) int {
	ts.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) signup(name string) (string, *models.UserSummary) {
	ts.t.Helper()
	var res tokenResponse
	code := ts.do(http.MethodPost, "/api/auth/signup", "", signupRequest{
		Name:     name,
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Password: "hunter22",
	}, &res)
	require.Equal(ts.t, http.StatusCreated, code)
	return res.Token, res.User
}

func (ts *testServer) createEvent(token string, capacity int) *models.Event {
	ts.t.Helper()
	var res eventResponse
	code := ts.do(http.MethodPost, "/api/events", token, eventRequest{
		Title:       "GopherCon",
		Description: "Talks about Go",
		Category:    "conference",
		Date:        "2026-11-05",
		Time:        "09:00 AM",
		Location:    "Berlin",
		Capacity:    capacity,
	}, &res)
	require.Equal(ts.t, http.StatusCreated, code)
	return res.Event
}

func (ts *testServer) register(token, eventID string) (int, registrationResponse, message) {
	ts.t.Helper()
	var raw json.RawMessage
	code := ts.do(http.MethodPost, "/api/registrations", token, registerRequest{
		EventID: eventID,
		Name:    "Gopher",
		Email:   "gopher@example.com",
		Phone:   "555-0100",
	}, &raw)

	var (
		res registrationResponse
		msg message
	)
	require.NoError(ts.t, json.Unmarshal(raw, &res))
	require.NoError(ts.t, json.Unmarshal(raw, &msg))
	return code, res, msg
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	token, user := ts.signup("ann")
	require.NotEmpty(t, token)

	var me struct {
		User models.User `json:"user"`
	}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/auth/me", token, nil, &me))
	assert.Equal(t, user.ID, me.User.ID)

	var body map[string]any
	ts.do(http.MethodGet, "/api/auth/me", token, nil, &body)
	assert.NotContains(t, body["user"], "passwordHash")

	var login tokenResponse
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/auth/login", "", loginRequest{user.Email, "hunter22"}, &login))
	assert.Equal(t, user.ID, login.User.ID)

	var msg message
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/auth/login", "", loginRequest{user.Email, "nope"}, &msg))
	assert.NotEmpty(t, msg.Message)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/auth/signup", "", signupRequest{"ann", user.Email, "hunter22"}, &msg))
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/auth/me", "", nil, &msg))
}

func TestEventEndpoints(t *testing.T) {
	ts := newTestServer(t)
	orgToken, org := ts.signup("org")
	otherToken, _ := ts.signup("other")

	ev := ts.createEvent(orgToken, 3)
	assert.Equal(t, models.DefaultImage, ev.Image)
	assert.Equal(t, org.ID, ev.OrganizerID)

	var list struct {
		Events []models.Event `json:"events"`
	}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/events?category=all&search=gopher", "", nil, &list))
	require.Len(t, list.Events, 1)
	assert.Equal(t, "org", list.Events[0].Organizer.Name)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/events?category=workshop", "", nil, &list))
	assert.Empty(t, list.Events)
	assert.NotNil(t, list.Events)

	var msg message
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/events?limit=x", "", nil, &msg))

	var got eventResponse
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/events/"+ev.ID, "", nil, &got))
	assert.Equal(t, ev.Title, got.Event.Title)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/events/"+uuid.NewString(), "", nil, &msg))

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, "/api/events/"+ev.ID, otherToken, eventRequest{Title: "Mine"}, &msg))
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/events/"+ev.ID, orgToken, eventRequest{Capacity: 5}, &got))
	assert.Equal(t, 5, got.Event.Capacity)
	assert.Equal(t, "GopherCon", got.Event.Title)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/events", orgToken, eventRequest{Title: "Half"}, &msg))
	assert.Contains(t, msg.Message, "description is required")

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/events", "", eventRequest{}, &msg))

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, "/api/events/"+ev.ID, otherToken, nil, &msg))
	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/events/"+ev.ID, orgToken, nil, &msg))
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/events/"+ev.ID, "", nil, &msg))
}

// TestRegistrationScenario walks capacity 2 with users A, B and C.
func TestRegistrationScenario(t *testing.T) {
	ts := newTestServer(t)
	orgToken, _ := ts.signup("org")
	aToken, _ := ts.signup("a")
	bToken, _ := ts.signup("b")
	cToken, _ := ts.signup("c")

	ev := ts.createEvent(orgToken, 2)

	code, regA, _ := ts.register(aToken, ev.ID)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Successfully registered for event", regA.Message)
	assert.Equal(t, 1, regA.Registration.Event.RegistrationCount)

	code, _, _ = ts.register(bToken, ev.ID)
	require.Equal(t, http.StatusCreated, code)

	code, _, msg := ts.register(cToken, ev.ID)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Event is at full capacity", msg.Message)

	code, _, msg = ts.register(aToken, ev.ID)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "You are already registered for this event", msg.Message)

	var m message
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, "/api/registrations/"+regA.Registration.ID, bToken, nil, &m))
	assert.Equal(t, "Not authorized", m.Message)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/registrations/"+regA.Registration.ID, aToken, nil, &m))
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/registrations/"+regA.Registration.ID, aToken, nil, &m))
	assert.Equal(t, "Registration not found", m.Message)

	code, _, _ = ts.register(cToken, ev.ID)
	assert.Equal(t, http.StatusCreated, code)

	var got eventResponse
	ts.do(http.MethodGet, "/api/events/"+ev.ID, "", nil, &got)
	assert.Equal(t, 2, got.Event.RegistrationCount)

	var regs registrationsResponse
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/registrations/event/"+ev.ID, orgToken, nil, &regs))
	assert.Len(t, regs.Registrations, 2)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/registrations/event/"+ev.ID, cToken, nil, &m))

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/registrations", aToken, nil, &regs))
	assert.Empty(t, regs.Registrations)
	assert.NotNil(t, regs.Registrations)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/registrations", cToken, nil, &regs))
	require.Len(t, regs.Registrations, 1)
	assert.Equal(t, ev.ID, regs.Registrations[0].Event.ID)
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signup("a")

	missing := uuid.NewString()
	code, _, msg := ts.register(token, missing)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Event not found", msg.Message)
	assert.NotContains(t, msg.Message, missing)

	var m message
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/registrations", token,
		registerRequest{EventID: uuid.NewString(), Name: "Gopher"}, &m))
	assert.Contains(t, m.Message, "phone is required")

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/registrations", "", registerRequest{}, &m))

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/registrations", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/nope", "", nil, &m))
}

// TestLastSeatOverHTTP races two users for one seat through the full stack.
func TestLastSeatOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	orgToken, _ := ts.signup("org")

	for round := 0; round < 5; round++ {
		ev := ts.createEvent(orgToken, 1)
		tokens := make([]string, 2)
		for i := range tokens {
			tokens[i], _ = ts.signup(fmt.Sprintf("racer%d", i))
		}

		codes := make([]int, 2)
		var wg sync.WaitGroup
		for i, tok := range tokens {
			wg.Add(1)
			go func() {
				defer wg.Done()
				codes[i], _, _ = ts.register(tok, ev.ID)
			}()
		}
		wg.Wait()

		assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusBadRequest}, codes, "round %d", round)

		var got eventResponse
		ts.do(http.MethodGet, "/api/events/"+ev.ID, "", nil, &got)
		assert.Equal(t, 1, got.Event.RegistrationCount)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("event x: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrInvalidInput, http.StatusBadRequest},
		{models.ErrAlreadyRegistered, http.StatusBadRequest},
		{models.ErrCapacityExceeded, http.StatusBadRequest},
		{models.ErrEmailTaken, http.StatusBadRequest},
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestMessageForHidesWrappedDetail(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("event 3f2a: %w", models.ErrNotFound), "Event not found"},
		{fmt.Errorf("registration 3f2a: %w", models.ErrForbidden), "Not authorized"},
		{models.ErrAlreadyRegistered, "You are already registered for this event"},
		{models.ErrCapacityExceeded, "Event is at full capacity"},
		{fmt.Errorf("%w: phone is required", models.ErrInvalidInput), "invalid input: phone is required"},
		{errors.New("connection reset by 10.0.0.7"), "Internal Server Error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, messageFor(tt.err, "Event"), tt.err.Error())
	}
}
