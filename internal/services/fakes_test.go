package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"hearth-backend/internal/config"
	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"
	"hearth-backend/internal/notify"
	"hearth-backend/internal/repository"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var errBackendDown = errors.New("connection refused")

// fakeCouples mirrors the conditional updates of the SQL repository
type fakeCouples struct {
	mu          sync.Mutex
	couples     map[string]*models.Couple
	getErr      error
	updateErr   error
	failUpdates int
	updates     int
}

func newFakeCouples() *fakeCouples {
	return &fakeCouples{couples: make(map[string]*models.Couple)}
}

func (f *fakeCouples) Create(_ context.Context, c *models.Couple) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.couples {
		if existing.InviteCode == c.InviteCode {
			return repository.ErrDuplicate
		}
	}
	f.couples[c.ID] = c.Clone()
	return nil
}

func (f *fakeCouples) GetByID(_ context.Context, id string) (*models.Couple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.couples[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

func (f *fakeCouples) GetByUserID(_ context.Context, userID string) (*models.Couple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var matches []*models.Couple
	for _, c := range f.couples {
		if c.RoleOf(userID) != models.RoleNone {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].IsPaired() != matches[j].IsPaired() {
			return matches[i].IsPaired()
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0].Clone(), nil
}

func (f *fakeCouples) GetByInviteCode(_ context.Context, code string) (*models.Couple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.couples {
		if c.InviteCode == strings.ToUpper(code) {
			return c.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCouples) InviteCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.couples {
		if c.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCouples) Update(_ context.Context, id string, cmd models.Command) (*models.Couple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.failUpdates > 0 {
		f.failUpdates--
		return nil, errBackendDown
	}
	c, ok := f.couples[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cond, ok := cmd.(models.Conditional); ok && !cond.Allowed(c) {
		return nil, repository.ErrConflict
	}
	next := c.Clone()
	cmd.Apply(next)
	next.Version++
	f.couples[id] = next
	f.updates++
	return next.Clone(), nil
}

func (f *fakeCouples) get(id string) *models.Couple {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.couples[id].Clone()
}

func (f *fakeCouples) put(c *models.Couple) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.couples[c.ID] = c.Clone()
}

func (f *fakeCouples) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	touches  int
	touchErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]*models.Profile)}
}

func (f *fakeProfiles) Create(_ context.Context, p *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.profiles[p.ID] = &cp
	return nil
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) Touch(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	if f.touchErr != nil {
		return f.touchErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastActiveAt = &at
	return nil
}

func (f *fakeProfiles) UpdatePushToken(_ context.Context, id string, pushToken *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PushToken = pushToken
	return nil
}

func (f *fakeProfiles) ListWithPushToken(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, p := range f.profiles {
		if p.PushToken != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeProfiles) touchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touches
}

func (f *fakeProfiles) setTouchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchErr = err
}

type fakeCheckins struct {
	mu   sync.Mutex
	rows []models.DailyCheckin
}

func (f *fakeCheckins) Upsert(_ context.Context, checkin models.DailyCheckin) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == checkin.UserID && r.CheckinDate == checkin.CheckinDate {
			return false, nil
		}
	}
	f.rows = append(f.rows, checkin)
	return true, nil
}

func (f *fakeCheckins) ListByCouple(_ context.Context, coupleID string) ([]models.DailyCheckin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DailyCheckin
	for _, r := range f.rows {
		if r.CoupleID == coupleID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeMessages struct {
	mu   sync.Mutex
	rows []*models.Message
}

func (f *fakeMessages) Create(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, m)
	return nil
}

func (f *fakeMessages) ListByCouple(_ context.Context, coupleID string, before time.Time, limit int) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.rows[i]
		if m.CoupleID == coupleID && m.CreatedAt.Before(before) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeSurprises struct {
	mu   sync.Mutex
	rows []*models.Surprise
}

func (f *fakeSurprises) Create(_ context.Context, s *models.Surprise) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, s)
	return nil
}

func (f *fakeSurprises) Open(_ context.Context, id, coupleID, recipientID string, at time.Time) (*models.Surprise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.ID == id && s.CoupleID == coupleID && s.SenderID != recipientID {
			if s.OpenedAt == nil {
				s.OpenedAt = &at
			}
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSurprises) ListUnopened(_ context.Context, coupleID, recipientID string) ([]*models.Surprise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Surprise
	for _, s := range f.rows {
		if s.CoupleID == coupleID && s.SenderID != recipientID && s.OpenedAt == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeRituals struct {
	mu   sync.Mutex
	rows map[string]*models.DailyRitual
}

func newFakeRituals() *fakeRituals {
	return &fakeRituals{rows: make(map[string]*models.DailyRitual)}
}

func (f *fakeRituals) GetOrCreate(_ context.Context, r *models.DailyRitual) (*models.DailyRitual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.CoupleID == r.CoupleID && existing.RitualDate == r.RitualDate {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *r
	f.rows[r.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRituals) Answer(_ context.Context, id string, role models.Role, answer string) (*models.DailyRitual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if role == models.RolePartner2 {
		r.P2Answer = &answer
	} else {
		r.P1Answer = &answer
	}
	cp := *r
	return &cp, nil
}

type fakeMemories struct {
	mu   sync.Mutex
	rows []*models.Memory
}

func (f *fakeMemories) Create(_ context.Context, m *models.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, m)
	return nil
}

func (f *fakeMemories) ListByCouple(_ context.Context, coupleID string, limit, offset int) ([]*models.Memory, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*models.Memory
	for _, m := range f.rows {
		if m.CoupleID == coupleID {
			all = append(all, m)
		}
	}
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

type fakePresigner struct{}

func (fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.test/put/" + *params.Key, Method: "PUT"}, nil
}

func (fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.test/get/" + *params.Key, Method: "GET"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(msgType string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, ev := range p.events {
		if ev.Message.Type == msgType {
			out = append(out, ev)
		}
	}
	return out
}

type sentNotification struct {
	UserID string
	notify.Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID string, note notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Notification: note})
	return nil
}

func (n *recordingNotifier) ofKind(kind string) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// testEnv wires every service over in-memory fakes
type testEnv struct {
	couples   *fakeCouples
	profiles  *fakeProfiles
	checkins  *fakeCheckins
	messages  *fakeMessages
	surprises *fakeSurprises
	rituals   *fakeRituals
	memories  *fakeMemories
	publisher *recordingPublisher
	notifier  *recordingNotifier
	store     *couplestore.Store

	users       *UserService
	pairing     *PairingService
	negotiation *NegotiationService
	presence    *PresenceService
	moodSvc     *MoodService
	checkinSvc  *CheckinService
	coupleSvc   *CoupleService
	messageSvc  *MessageService
	surpriseSvc *SurpriseService
	ritualSvc   *RitualService
	memorySvc   *MemoryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Pairing = config.PairingConfig{
		PollInterval:    5 * time.Millisecond,
		PollMaxInterval: 20 * time.Millisecond,
		WaitTimeout:     300 * time.Millisecond,
	}
	loc := time.UTC

	e := &testEnv{
		couples:   newFakeCouples(),
		profiles:  newFakeProfiles(),
		checkins:  &fakeCheckins{},
		messages:  &fakeMessages{},
		surprises: &fakeSurprises{},
		rituals:   newFakeRituals(),
		memories:  &fakeMemories{},
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	e.store = couplestore.NewStore(couplestore.NewMemoryCache(), e.couples)

	e.users = NewUserService(e.profiles, "test-secret")
	e.pairing = NewPairingService(e.couples, e.store, e.publisher, e.notifier, cfg.Pairing)
	e.negotiation = NewNegotiationService(e.couples, e.store, e.publisher)
	e.presence = NewPresenceService(e.profiles, e.store, e.publisher, cfg.Presence)
	e.moodSvc = NewMoodService(cfg.Mood, loc, e.store, e.publisher)
	t.Cleanup(e.moodSvc.overrides.Stop)
	e.checkinSvc = NewCheckinService(e.checkins, e.publisher, e.notifier, loc)
	e.coupleSvc = NewCoupleService(e.couples, e.store, e.publisher, e.checkinSvc, e.moodSvc, e.presence, loc)
	e.messageSvc = NewMessageService(e.messages, e.couples, e.store, e.publisher, e.moodSvc, e.notifier)
	e.surpriseSvc = NewSurpriseService(e.surprises, e.couples, e.store, e.publisher, e.moodSvc, e.notifier)
	e.ritualSvc = NewRitualService(e.rituals, e.profiles, e.couples, e.store, e.publisher, e.notifier, loc)
	e.memorySvc = NewMemoryService(e.memories, e.couples, e.store, fakePresigner{}, "hearth-test")
	return e
}

// pair creates a home for a and joins b to it
func (e *testEnv) pair(t *testing.T, a, b string) *models.Couple {
	t.Helper()
	ctx := context.Background()
	home, err := e.pairing.CreateHome(ctx, a)
	if err != nil {
		t.Fatalf("create home: %v", err)
	}
	joined, err := e.pairing.JoinHome(ctx, b, home.InviteCode)
	if err != nil {
		t.Fatalf("join home: %v", err)
	}
	return joined
}

func (e *testEnv) addProfile(id, name string) {
	_ = e.profiles.Create(context.Background(), &models.Profile{ID: id, DisplayName: name, CreatedAt: time.Now()})
}
