package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/events"
	"github.com/spec-kit/install-tickets/internal/repository"
	"github.com/spec-kit/install-tickets/internal/repository/repotest"
	"github.com/spec-kit/install-tickets/internal/worker"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

type fixture struct {
	store      *repotest.Store
	dispatcher *recordingDispatcher
	observer   *transitionCounter
	tickets    *TicketService

	admin     domain.User
	seller    domain.User
	seller2   domain.User
	tech      domain.User
	otherTech domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.New()
	f := &fixture{
		store:      store,
		dispatcher: &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher()},
		observer:   &transitionCounter{counts: map[string]int{}},
	}
	f.admin = store.AddUser(domain.User{ID: 2, Name: "Ana Admin", Email: "admin@example.com", Role: domain.RoleAdmin, PasswordHash: mustHash(t, "admin-pass")})
	f.seller = store.AddUser(domain.User{ID: 5, Name: "Sam Seller", Email: "seller@example.com", Role: domain.RoleSeller, PasswordHash: mustHash(t, "seller-pass")})
	f.seller2 = store.AddUser(domain.User{ID: 6, Name: "Sue Seller", Email: "seller2@example.com", Role: domain.RoleSeller})
	f.tech = store.AddUser(domain.User{ID: 9, Name: "Tom Tech", Email: "tech@example.com", Role: domain.RoleTech, PushToken: strPtr("tech-device")})
	f.otherTech = store.AddUser(domain.User{ID: 10, Name: "Tia Tech", Email: "tech2@example.com", Role: domain.RoleTech})

	f.tickets = NewTicketService(TicketDependencies{
		Store:      store,
		Dispatcher: f.dispatcher,
		Observer:   f.observer,
	})
	return f
}

func principal(u domain.User) domain.Principal {
	return domain.Principal{UserID: u.ID, Role: u.Role}
}

func (f *fixture) newTicketInput() TicketCreateInput {
	return TicketCreateInput{
		Title:        "Install",
		Description:  "x",
		Priority:     "high",
		RequestedBy:  int64Ptr(f.seller.ID),
		CustomerName: "Acme",
		Address:      "St 1",
		Identifier:   "12345678901",
		PhoneNumber:  "111",
	}
}

func (f *fixture) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	in := f.newTicketInput()
	in.Identifier = nextIdentifier()
	ticket, err := f.tickets.Create(context.Background(), principal(f.seller), in)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) approvedTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := f.createTicket(t)
	approved, err := f.tickets.Approve(context.Background(), principal(f.admin), ticket.ID, int64Ptr(f.tech.ID))
	require.NoError(t, err)
	return approved
}

var (
	identifierMu  sync.Mutex
	identifierSeq int64 = 10000000000
)

func nextIdentifier() string {
	identifierMu.Lock()
	defer identifierMu.Unlock()
	identifierSeq++
	return strconv.FormatInt(identifierSeq, 10)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.ToDomainError(err).Code, "error: %v", err)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

type recordingDispatcher struct {
	events.Dispatcher
	mu        sync.Mutex
	published []events.Event
}

func (r *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	r.published = append(r.published, event)
	r.mu.Unlock()
	return r.Dispatcher.Publish(ctx, event)
}

func (r *recordingDispatcher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.published))
	for _, e := range r.published {
		out = append(out, e.Type)
	}
	return out
}

type transitionCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *transitionCounter) ObserveTransition(transition string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[transition]++
}

func (c *transitionCounter) get(transition string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[transition]
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (q *recordingQueue) Enqueue(job worker.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true
}

// faultyStore fails ticket inserts so rollback of the customer can be observed.
type faultyStore struct {
	repository.Store
	err error
}

func (f faultyStore) Tickets() repository.TicketRepository {
	return faultyTickets{TicketRepository: f.Store.Tickets(), err: f.err}
}

func (f faultyStore) InTx(ctx context.Context, fn func(repository.Store) error) error {
	return f.Store.InTx(ctx, func(tx repository.Store) error {
		return fn(faultyStore{Store: tx, err: f.err})
	})
}

type faultyTickets struct {
	repository.TicketRepository
	err error
}

func (f faultyTickets) Create(context.Context, *domain.Ticket) error {
	return f.err
}
