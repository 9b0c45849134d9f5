package application

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// calendarRepositoryStub is an in-memory CalendarRepository.
type calendarRepositoryStub struct {
	mu        sync.Mutex
	calendars map[string]Calendar
	order     []string

	getErr    error
	saveErr   error
	createErr error
	saveCalls int
}

func newCalendarRepositoryStub(calendars ...Calendar) *calendarRepositoryStub {
	repo := &calendarRepositoryStub{calendars: make(map[string]Calendar)}
	for _, c := range calendars {
		repo.put(c)
	}
	return repo
}

func (r *calendarRepositoryStub) put(c Calendar) {
	if _, ok := r.calendars[c.ID]; !ok {
		r.order = append(r.order, c.ID)
	}
	c.Members = cloneMembers(c.Members)
	r.calendars[c.ID] = c
}

func (r *calendarRepositoryStub) get(id string) Calendar {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.calendars[id]
	c.Members = cloneMembers(c.Members)
	return c
}

func (r *calendarRepositoryStub) CreateCalendar(ctx context.Context, calendar Calendar) (Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Calendar{}, r.createErr
	}
	for _, existing := range r.calendars {
		if existing.OwnerID == calendar.OwnerID && existing.Name == calendar.Name {
			return Calendar{}, ErrConflict
		}
	}
	r.put(calendar)
	return calendar, nil
}

func (r *calendarRepositoryStub) GetCalendar(ctx context.Context, id string) (Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return Calendar{}, r.getErr
	}
	c, ok := r.calendars[id]
	if !ok {
		return Calendar{}, ErrNotFound
	}
	c.Members = cloneMembers(c.Members)
	return c, nil
}

func (r *calendarRepositoryStub) SaveCalendar(ctx context.Context, calendar Calendar) (Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return Calendar{}, r.saveErr
	}
	if _, ok := r.calendars[calendar.ID]; !ok {
		return Calendar{}, ErrNotFound
	}
	r.saveCalls++
	r.put(calendar)
	return calendar, nil
}

func (r *calendarRepositoryStub) DeleteCalendar(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calendars[id]; !ok {
		return ErrNotFound
	}
	delete(r.calendars, id)
	return nil
}

func (r *calendarRepositoryStub) ListCalendarsForUser(ctx context.Context, userID string) ([]Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Calendar
	for _, id := range r.order {
		c, ok := r.calendars[id]
		if !ok {
			continue
		}
		if c.OwnerID == userID || c.MemberIndex(userID) >= 0 {
			c.Members = cloneMembers(c.Members)
			out = append(out, c)
		}
	}
	return out, nil
}

// inviteRepositoryStub is an in-memory InviteRepository.
type inviteRepositoryStub struct {
	mu      sync.Mutex
	invites map[string]Invite

	saveErr   error
	saveCalls int
}

func newInviteRepositoryStub(invites ...Invite) *inviteRepositoryStub {
	repo := &inviteRepositoryStub{invites: make(map[string]Invite)}
	for _, inv := range invites {
		repo.invites[inv.ID] = inv
	}
	return repo
}

func (r *inviteRepositoryStub) get(id string) Invite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invites[id]
}

func (r *inviteRepositoryStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invites)
}

func (r *inviteRepositoryStub) CreateInvite(ctx context.Context, invite Invite) (Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.invites {
		if existing.Token == invite.Token {
			return Invite{}, ErrConflict
		}
	}
	r.invites[invite.ID] = invite
	return invite, nil
}

func (r *inviteRepositoryStub) SaveInvite(ctx context.Context, invite Invite) (Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return Invite{}, r.saveErr
	}
	if _, ok := r.invites[invite.ID]; !ok {
		return Invite{}, ErrNotFound
	}
	r.saveCalls++
	r.invites[invite.ID] = invite
	return invite, nil
}

func (r *inviteRepositoryStub) GetInvite(ctx context.Context, id string) (Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[id]
	if !ok {
		return Invite{}, ErrNotFound
	}
	return inv, nil
}

func (r *inviteRepositoryStub) GetInviteByToken(ctx context.Context, token string) (Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invites {
		if inv.Token == token {
			return inv, nil
		}
	}
	return Invite{}, ErrNotFound
}

func (r *inviteRepositoryStub) FindPendingInvite(ctx context.Context, calendarID, email string) (Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invites {
		if inv.CalendarID == calendarID && inv.Email == email && inv.Status == InviteStatusPending {
			return inv, nil
		}
	}
	return Invite{}, ErrNotFound
}

func (r *inviteRepositoryStub) ListInvitesForCalendar(ctx context.Context, calendarID string) ([]Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invite
	for _, inv := range r.invites {
		if inv.CalendarID == calendarID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *inviteRepositoryStub) DeleteInvite(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invites[id]; !ok {
		return ErrNotFound
	}
	delete(r.invites, id)
	return nil
}

// eventRepositoryStub is an in-memory EventRepository.
type eventRepositoryStub struct {
	events  map[string]Event
	filters []EventFilter
}

func newEventRepositoryStub(events ...Event) *eventRepositoryStub {
	repo := &eventRepositoryStub{events: make(map[string]Event)}
	for _, e := range events {
		repo.events[e.ID] = e
	}
	return repo
}

func (r *eventRepositoryStub) CreateEvent(ctx context.Context, event Event) (Event, error) {
	r.events[event.ID] = event
	return event, nil
}

func (r *eventRepositoryStub) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	if _, ok := r.events[event.ID]; !ok {
		return Event{}, ErrNotFound
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *eventRepositoryStub) GetEvent(ctx context.Context, id string) (Event, error) {
	e, ok := r.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (r *eventRepositoryStub) DeleteEvent(ctx context.Context, id string) error {
	if _, ok := r.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *eventRepositoryStub) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	r.filters = append(r.filters, filter)
	allowed := make(map[string]bool, len(filter.CalendarIDs))
	for _, id := range filter.CalendarIDs {
		allowed[id] = true
	}
	var out []Event
	for _, e := range r.events {
		if !allowed[e.CalendarID] {
			continue
		}
		if !filter.End.IsZero() && !e.Start.Before(filter.End) {
			continue
		}
		if !filter.Start.IsZero() && !e.End.After(filter.Start) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// userDirectoryStub resolves users from a fixed set.
type userDirectoryStub struct {
	users map[string]User
}

func newUserDirectoryStub(users ...User) *userDirectoryStub {
	dir := &userDirectoryStub{users: make(map[string]User)}
	for _, u := range users {
		dir.users[u.ID] = u
	}
	return dir
}

func (d *userDirectoryStub) GetUser(ctx context.Context, id string) (User, error) {
	u, ok := d.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (d *userDirectoryStub) GetUserByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (d *userDirectoryStub) ListUsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	var out []User
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// notifierStub records notifications and optionally fails.
type notifierStub struct {
	mu   sync.Mutex
	sent []InviteNotification
	err  error
}

func (n *notifierStub) SendInvite(ctx context.Context, notification InviteNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *notifierStub) notifications() []InviteNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]InviteNotification, len(n.sent))
	copy(out, n.sent)
	return out
}

type linkBuilderStub struct{}

func (linkBuilderStub) InviteLink(token string) string {
	return "https://cal.example.com/invite/" + token
}

// observerStub counts observed events.
type observerStub struct {
	mu            sync.Mutex
	denied        []Role
	issued        int
	reissued      int
	accepted      int
	expired       int
	notifyFailure int
}

func (o *observerStub) AccessDenied(role Role) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.denied = append(o.denied, role)
}

func (o *observerStub) InviteIssued(reissued bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if reissued {
		o.reissued++
		return
	}
	o.issued++
}

func (o *observerStub) InviteAccepted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted++
}

func (o *observerStub) InviteExpired() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expired++
}

func (o *observerStub) InviteNotification(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.notifyFailure++
	}
}

// taskRunnerStub runs tasks inline and records their names and contexts.
type taskRunnerStub struct {
	names    []string
	contexts []context.Context
}

func (r *taskRunnerStub) Go(ctx context.Context, name string, fn func(context.Context) error) {
	r.names = append(r.names, name)
	r.contexts = append(r.contexts, ctx)
	_ = fn(ctx)
}

// sequence returns a generator yielding prefix-1, prefix-2, ...
func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func tokenSequence(prefix string) func() (string, error) {
	next := sequence(prefix)
	return func() (string, error) { return next(), nil }
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
