package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/dto"
	"pickupBoard/internal/model"
	"pickupBoard/internal/repo"
	"pickupBoard/internal/service"
	"pickupBoard/internal/store"
	"pickupBoard/internal/toggle"
)

const secret = "0123456789abcdef0123456789abcdef"

type fakeRepo struct {
	mu        sync.Mutex
	events    []model.Event
	roster    []model.RosterSlot
	eventsErr error
	writeErr  error
	writes    []string
	saveErr   error

	dropoffs []model.DropoffLocation
	// slowDropoffs, when set, holds the next drop-off fetch after it has read
	// its rows until the channel is closed.
	slowDropoffs chan struct{}
	fetching     chan struct{}
}

func (f *fakeRepo) GetUpcomingEvents(context.Context, auth.Credential, time.Time) ([]model.Event, error) {
	return f.events, f.eventsErr
}

func (f *fakeRepo) GetEventByID(_ context.Context, _ auth.Credential, id string) (*model.Event, error) {
	for _, e := range f.events {
		if e.Contains(id) {
			return &e, nil
		}
	}
	return nil, repo.ErrEventNotFound
}

func (f *fakeRepo) GetRoster(context.Context, auth.Credential, []string) ([]model.RosterSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.RosterSlot(nil), f.roster...), nil
}

func (f *fakeRepo) GetDrivers(context.Context, auth.Credential, []string) ([]model.Driver, error) {
	return []model.Driver{{ID: "recD1", Name: "Ana Ruiz"}}, nil
}

func (f *fakeRepo) GetDropoffLocations(context.Context, auth.Credential) ([]model.DropoffLocation, error) {
	f.mu.Lock()
	rows := append([]model.DropoffLocation(nil), f.dropoffs...)
	if f.dropoffs == nil {
		rows = []model.DropoffLocation{{ID: "recL1", SiteName: "Library"}}
	}
	gate := f.slowDropoffs
	f.slowDropoffs = nil
	f.mu.Unlock()

	if gate != nil {
		close(f.fetching)
		<-gate
	}
	return rows, nil
}

func (f *fakeRepo) GetSpecialGroups(context.Context, auth.Credential) ([]model.SpecialGroup, error) {
	return nil, nil
}

func (f *fakeRepo) GetNeighborhoods(context.Context, auth.Credential) ([]model.Neighborhood, error) {
	return nil, nil
}

func (f *fakeRepo) UpdateSlotField(_ context.Context, _ auth.Credential, slotID, field string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, slotID+"/"+field)
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.roster {
		if f.roster[i].ID == slotID && field == repo.FieldConfirmed {
			f.roster[i].Confirmed = value
		}
	}
	return nil
}

func (f *fakeRepo) UpdateDropoffAvailability(context.Context, auth.Credential, string, bool) error {
	return nil
}

func (f *fakeRepo) AssignDriver(context.Context, auth.Credential, string, []string) (*model.Driver, error) {
	return nil, repo.ErrDriverNotFound
}

func (f *fakeRepo) SaveDropoffSchedule(_ context.Context, _ auth.Credential, rows []model.ScheduleChange) (int, error) {
	if f.saveErr != nil {
		return 10, f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		for i := range f.dropoffs {
			if f.dropoffs[i].ID == row.ID {
				f.dropoffs[i].StartTime = row.StartTime
				f.dropoffs[i].EndTime = row.EndTime
				f.dropoffs[i].DeliveriesNeeded = row.DeliveriesNeeded
			}
		}
	}
	return len(rows), nil
}

type fakeMailer struct {
	sent []string
}

func (m *fakeMailer) SendConfirmation(name, recipient, when, where string) error {
	m.sent = append(m.sent, recipient+"|"+when)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, toggle.Notification) {}

type fakeTemplates struct{}

func (fakeTemplates) Get(_ context.Context, _ auth.Credential, id string) (model.Template, error) {
	return model.Template{ID: id, Text: "We need drivers this Saturday!"}, nil
}

type fakeBlasts struct {
	mu     sync.Mutex
	blasts map[string]model.Blast
}

func (f *fakeBlasts) SaveBlast(b model.Blast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blasts == nil {
		f.blasts = make(map[string]model.Blast)
	}
	f.blasts[b.ID] = b
	return nil
}

func (f *fakeBlasts) GetBlast(id string) (*model.Blast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blasts[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeBlasts) RecentBlasts(limit int) ([]model.Blast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Blast
	for _, b := range f.blasts {
		if len(out) == limit {
			break
		}
		out = append(out, b)
	}
	return out, nil
}

type fakePublisher struct {
	err       error
	published int
}

func (p *fakePublisher) Publish(context.Context, []byte, time.Duration) error {
	p.published++
	return p.err
}

func newTestServer(t *testing.T, r *fakeRepo, mail *fakeMailer) (http.Handler, string) {
	t.Helper()
	deps := service.Deps{Repo: r}
	if mail != nil {
		deps.Mailer = mail
	}
	return newTestServerWith(t, deps)
}

// newTestServerWith fills in the logger, notifier and automation credentials
// that deps leaves unset.
func newTestServerWith(t *testing.T, deps service.Deps) (http.Handler, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	deps.Log = &log
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Automation == nil {
		deps.Automation = auth.NewStaticProvider("wf")
	}
	svc := service.NewService(deps)
	v := auth.NewVerifier(secret, "")
	app := NewRouters(&Routers{Service: svc, Verifier: v, Creds: auth.NewStaticProvider("pat")})

	tok, err := v.Issue(auth.Staff{ID: "staff-1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return app, "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func sampleEvent() model.Event {
	return model.Event{
		ID:             "recE",
		DisplayDate:    "Saturday, March 2",
		DisplayTime:    "1:00 PM",
		PickupLocation: "Warehouse",
		SlotIDs:        []string{"recV1", "recV2"},
		AllEventIDs:    []string{"recE", "recS"},
	}
}

func sampleRoster() []model.RosterSlot {
	return []model.RosterSlot{
		{ID: "recV1", FirstName: "Ana", Type: model.TypeDriver, Email: "ana@example.org"},
		{ID: "recV2", FirstName: "Bo", Type: model.TypePacker, Confirmed: true, SpecialGroup: "Scouts"},
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	h, _ := newTestServer(t, &fakeRepo{}, nil)
	w, resp := do(t, h, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || resp.Status != "ok" {
		t.Errorf("health = %d %+v", w.Code, resp)
	}
}

func TestAuthRequired(t *testing.T) {
	h, _ := newTestServer(t, &fakeRepo{}, nil)
	w, resp := do(t, h, http.MethodGet, "/v1/events", "", nil)
	if w.Code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != dto.Unauthenticated {
		t.Errorf("no token = %d %+v", w.Code, resp.Error)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		want     string
	}{
		{"unauthenticated", store.ErrUnauthenticated, http.StatusUnauthorized, dto.Unauthenticated},
		{"upstream", store.ErrUpstreamUnavailable, http.StatusBadGateway, dto.UpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, tok := newTestServer(t, &fakeRepo{eventsErr: tt.err}, nil)
			w, resp := do(t, h, http.MethodGet, "/v1/events", tok, nil)
			if w.Code != tt.wantCode || resp.Error == nil || resp.Error.Code != tt.want {
				t.Errorf("got %d %+v", w.Code, resp.Error)
			}
		})
	}
}

func TestGetEventBySpecialID(t *testing.T) {
	h, tok := newTestServer(t, &fakeRepo{events: []model.Event{sampleEvent()}}, nil)

	w, resp := do(t, h, http.MethodGet, "/v1/events/recS", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data, _ := json.Marshal(resp.Data)
	var ev model.Event
	_ = json.Unmarshal(data, &ev)
	if ev.ID != "recE" {
		t.Errorf("event = %+v", ev)
	}

	w, resp = do(t, h, http.MethodGet, "/v1/events/recX", tok, nil)
	if w.Code != http.StatusBadRequest || resp.Error.Code != dto.EventNotFound {
		t.Errorf("missing event = %d %+v", w.Code, resp.Error)
	}
}

func TestRosterFilters(t *testing.T) {
	h, tok := newTestServer(t, &fakeRepo{events: []model.Event{sampleEvent()}, roster: sampleRoster()}, nil)

	// 0 = Confirmed, 5 = first special group ("Scouts")
	w, resp := do(t, h, http.MethodGet, "/v1/events/recE/roster?active=0,5", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %+v", w.Code, resp.Error)
	}
	data, _ := json.Marshal(resp.Data)
	var roster dto.RosterResponse
	if err := json.Unmarshal(data, &roster); err != nil {
		t.Fatal(err)
	}
	if len(roster.Predicates) != 6 || roster.Predicates[5].Label != "Scouts" || roster.Predicates[5].Kind != "dynamic" {
		t.Errorf("predicates = %+v", roster.Predicates)
	}
	if roster.Total != 2 || len(roster.Slots) != 1 || roster.Slots[0].ID != "recV2" {
		t.Errorf("slots = %+v", roster.Slots)
	}

	w, _ = do(t, h, http.MethodGet, "/v1/events/recE/roster?active=9", tok, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range filter = %d", w.Code)
	}
}

func TestToggleConfirmedSendsEmail(t *testing.T) {
	r := &fakeRepo{events: []model.Event{sampleEvent()}, roster: sampleRoster()}
	mail := &fakeMailer{}
	h, tok := newTestServer(t, r, mail)

	w, resp := do(t, h, http.MethodPatch, "/v1/slots/recV1/confirmed", tok, dto.ToggleSlotRequest{EventID: "recE", Current: false})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %+v", w.Code, resp.Error)
	}
	data, _ := json.Marshal(resp.Data)
	var tr dto.ToggleResponse
	_ = json.Unmarshal(data, &tr)
	if !tr.Toggle.Value || tr.Toggle.State != "idle" {
		t.Errorf("toggle = %+v", tr.Toggle)
	}
	if len(r.writes) != 1 {
		t.Errorf("writes = %v", r.writes)
	}
	if len(mail.sent) != 1 || mail.sent[0] != "ana@example.org|Saturday, March 2 at 1:00 PM" {
		t.Errorf("mail = %v", mail.sent)
	}
}

func TestToggleFailureKeepsValue(t *testing.T) {
	r := &fakeRepo{events: []model.Event{sampleEvent()}, roster: sampleRoster(), writeErr: store.ErrUpstreamUnavailable}
	mail := &fakeMailer{}
	h, tok := newTestServer(t, r, mail)

	w, resp := do(t, h, http.MethodPatch, "/v1/slots/recV1/cant-come", tok, dto.ToggleSlotRequest{EventID: "recE", Current: false})
	if w.Code != http.StatusBadGateway || resp.Error.Code != dto.UpstreamUnavailable {
		t.Errorf("failure = %d %+v", w.Code, resp.Error)
	}
	if len(mail.sent) != 0 {
		t.Errorf("mail sent on failure: %v", mail.sent)
	}
}

func TestSaveScheduleErrors(t *testing.T) {
	r := &fakeRepo{saveErr: &toggle.SaveError{Op: "save drop-off schedule", Chunk: 1, Applied: 10, Total: 23, Err: store.ErrUpstreamUnavailable}}
	h, tok := newTestServer(t, r, nil)

	body := dto.SaveScheduleRequest{Rows: []model.ScheduleChange{{ID: "recL1", StartTime: "9:00", EndTime: "10:00"}}}
	w, resp := do(t, h, http.MethodPut, "/v1/dropoff-locations/schedule", tok, body)
	if w.Code != http.StatusInternalServerError || resp.Error.Code != dto.WriteConflict {
		t.Errorf("conflict = %d %+v", w.Code, resp.Error)
	}

	r.saveErr = &toggle.ValidationError{Op: "save", Fields: []toggle.FieldError{{RecordID: "recL1", Field: "end_time", Message: "bad"}}}
	w, resp = do(t, h, http.MethodPut, "/v1/dropoff-locations/schedule", tok, body)
	if w.Code != http.StatusBadRequest || resp.Error.Code != dto.ValidationFailed || len(resp.Error.Fields) != 1 {
		t.Errorf("validation = %d %+v", w.Code, resp.Error)
	}
}

func TestOverview(t *testing.T) {
	h, tok := newTestServer(t, &fakeRepo{events: []model.Event{sampleEvent()}}, nil)
	w, resp := do(t, h, http.MethodGet, "/v1/events/recE/overview", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %+v", w.Code, resp.Error)
	}
	data, _ := json.Marshal(resp.Data)
	var ov dto.OverviewResponse
	_ = json.Unmarshal(data, &ov)
	if len(ov.Drivers) != 1 || len(ov.DropoffLocations) != 1 {
		t.Errorf("overview = %+v", ov)
	}
}

func TestBlastsDisabledWithoutWebhook(t *testing.T) {
	h, tok := newTestServer(t, &fakeRepo{}, nil)
	w, _ := do(t, h, http.MethodPost, "/v1/recruitment/blasts", tok, dto.CreateBlastRequest{TemplateID: "t"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCreateBlastPublishFailureMarksBlastFailed(t *testing.T) {
	blasts := &fakeBlasts{}
	pub := &fakePublisher{err: errors.New("channel closed")}
	h, tok := newTestServerWith(t, service.Deps{
		Repo:         &fakeRepo{},
		Templates:    fakeTemplates{},
		Blasts:       blasts,
		BlastQueue:   pub,
		BlastWebhook: "https://hooks.example.org/blast",
	})

	w, resp := do(t, h, http.MethodPost, "/v1/recruitment/blasts", tok, dto.CreateBlastRequest{TemplateID: "tplDrivers", DelayMinutes: 5})
	if w.Code != http.StatusInternalServerError || resp.Error == nil || resp.Error.Code != dto.ServiceUnavailable {
		t.Fatalf("status = %d %+v", w.Code, resp.Error)
	}
	if pub.published != 1 {
		t.Errorf("published = %d", pub.published)
	}
	if len(blasts.blasts) != 1 {
		t.Fatalf("recorded blasts = %v", blasts.blasts)
	}
	for _, b := range blasts.blasts {
		if b.Status != model.BlastFailed || b.Error == "" {
			t.Errorf("blast = %+v, want failed with a cause", b)
		}
		if b.TemplateID != "tplDrivers" {
			t.Errorf("template = %q", b.TemplateID)
		}
	}

	pub.err = nil
	w, _ = do(t, h, http.MethodPost, "/v1/recruitment/blasts", tok, dto.CreateBlastRequest{TemplateID: "tplDrivers"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("retry status = %d", w.Code)
	}
	queued := 0
	for _, b := range blasts.blasts {
		if b.Status == model.BlastQueued {
			queued++
		}
	}
	if queued != 1 {
		t.Errorf("queued blasts = %d, want 1", queued)
	}
}

func dropoffsOf(t *testing.T, resp dto.Response) []model.DropoffLocation {
	t.Helper()
	data, _ := json.Marshal(resp.Data)
	var locs []model.DropoffLocation
	if err := json.Unmarshal(data, &locs); err != nil {
		t.Fatalf("decoding drop-offs: %v", err)
	}
	return locs
}

func TestDropoffsAfterScheduleSaveAreFresh(t *testing.T) {
	r := &fakeRepo{dropoffs: []model.DropoffLocation{{ID: "recL1", SiteName: "Library", StartTime: "9:00", EndTime: "10:00", DeliveriesNeeded: 3}}}
	h, tok := newTestServer(t, r, nil)

	w, resp := do(t, h, http.MethodGet, "/v1/dropoff-locations", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %+v", w.Code, resp.Error)
	}
	if locs := dropoffsOf(t, resp); len(locs) != 1 || locs[0].DeliveriesNeeded != 3 {
		t.Fatalf("before save = %+v", locs)
	}

	// A fetch that read its rows before the save finishes after it.
	r.mu.Lock()
	r.slowDropoffs = make(chan struct{})
	r.fetching = make(chan struct{})
	gate, fetching := r.slowDropoffs, r.fetching
	r.mu.Unlock()

	slow := make(chan dto.Response, 1)
	go func() {
		_, resp := do(t, h, http.MethodGet, "/v1/dropoff-locations", tok, nil)
		slow <- resp
	}()
	<-fetching

	body := dto.SaveScheduleRequest{Rows: []model.ScheduleChange{{ID: "recL1", StartTime: "9:00", EndTime: "10:00", DeliveriesNeeded: 7}}}
	w, resp = do(t, h, http.MethodPut, "/v1/dropoff-locations/schedule", tok, body)
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d %+v", w.Code, resp.Error)
	}

	w, resp = do(t, h, http.MethodGet, "/v1/dropoff-locations", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %+v", w.Code, resp.Error)
	}
	if locs := dropoffsOf(t, resp); len(locs) != 1 || locs[0].DeliveriesNeeded != 7 {
		t.Errorf("after save = %+v", locs)
	}

	close(gate)
	if locs := dropoffsOf(t, <-slow); len(locs) != 1 || locs[0].DeliveriesNeeded != 7 {
		t.Errorf("late fetch = %+v, want the saved rows", locs)
	}

	_, resp = do(t, h, http.MethodGet, "/v1/dropoff-locations", tok, nil)
	if locs := dropoffsOf(t, resp); len(locs) != 1 || locs[0].DeliveriesNeeded != 7 {
		t.Errorf("next fetch = %+v", locs)
	}
}

func TestHealthReportsDropoffCache(t *testing.T) {
	r := &fakeRepo{dropoffs: []model.DropoffLocation{{ID: "recL1", SiteName: "Library"}}}
	h, tok := newTestServer(t, r, nil)

	cached := func() bool {
		t.Helper()
		_, resp := do(t, h, http.MethodGet, "/health", "", nil)
		m, _ := resp.Data.(map[string]any)
		v, _ := m["dropoffs_cached"].(bool)
		return v
	}

	if cached() {
		t.Errorf("cached before any fetch")
	}
	do(t, h, http.MethodGet, "/v1/dropoff-locations", tok, nil)
	if !cached() {
		t.Errorf("not cached after fetch")
	}
	body := dto.SaveScheduleRequest{Rows: []model.ScheduleChange{{ID: "recL1", StartTime: "9:00", EndTime: "10:00"}}}
	do(t, h, http.MethodPut, "/v1/dropoff-locations/schedule", tok, body)
	if cached() {
		t.Errorf("still cached after a schedule save")
	}
}
