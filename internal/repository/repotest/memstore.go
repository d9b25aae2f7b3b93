// Package repotest provides an in-memory repository.Store for service and
// transport tests. It mirrors the SQL guards of the Postgres repositories and
// gives InTx all-or-nothing semantics by working on a copy of the state.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/repository"
)

type state struct {
	users     map[int64]domain.User
	customers map[int64]domain.Customer
	tickets   map[int64]domain.Ticket
	history   []domain.TicketHistory
	nextID    int64
}

func (s *state) clone() *state {
	c := &state{
		users:     make(map[int64]domain.User, len(s.users)),
		customers: make(map[int64]domain.Customer, len(s.customers)),
		tickets:   make(map[int64]domain.Ticket, len(s.tickets)),
		history:   append([]domain.TicketHistory(nil), s.history...),
		nextID:    s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store is the in-memory repository.Store.
type Store struct {
	mu    *sync.Mutex
	st    *state
	inTx  bool
	clock func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		st: &state{
			users:     map[int64]domain.User{},
			customers: map[int64]domain.Customer{},
			tickets:   map[int64]domain.Ticket{},
		},
		clock: time.Now,
	}
}

var _ repository.Store = (*Store)(nil)

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(clock func() time.Time) {
	s.clock = clock
}

// lock serializes access outside transactions; inside InTx the outer lock is held.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) InTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	tx := &Store{mu: s.mu, st: work, inTx: true, clock: s.clock}
	if err := fn(tx); err != nil {
		return err
	}
	*s.st = *work
	return nil
}

func (s *Store) Users() repository.UserRepository            { return users{s} }
func (s *Store) Customers() repository.CustomerRepository    { return customers{s} }
func (s *Store) Tickets() repository.TicketRepository        { return tickets{s} }
func (s *Store) History() repository.TicketHistoryRepository { return history{s} }
func (s *Store) Reports() repository.ReportRepository        { return reports{s} }

// AddUser seeds a user and returns it with its id set.
func (s *Store) AddUser(u domain.User) domain.User {
	defer s.lock()()
	if u.ID == 0 {
		u.ID = s.st.id()
	} else if u.ID > s.st.nextID {
		s.st.nextID = u.ID
	}
	u.CreatedAt = s.clock()
	u.UpdatedAt = u.CreatedAt
	s.st.users[u.ID] = u
	return u
}

// PutTicket overwrites a ticket row as-is, bypassing lifecycle guards.
func (s *Store) PutTicket(t domain.Ticket) domain.Ticket {
	defer s.lock()()
	if t.ID == 0 {
		t.ID = s.st.id()
	} else if t.ID > s.st.nextID {
		s.st.nextID = t.ID
	}
	s.st.tickets[t.ID] = t
	return t
}

// Ticket returns the stored ticket row.
func (s *Store) Ticket(id int64) (domain.Ticket, bool) {
	defer s.lock()()
	t, ok := s.st.tickets[id]
	return t, ok
}

// Customers snapshot, ordered by id.
func (s *Store) AllCustomers() []domain.Customer {
	defer s.lock()()
	out := make([]domain.Customer, 0, len(s.st.customers))
	for _, c := range s.st.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TicketCount returns the number of stored tickets.
func (s *Store) TicketCount() int {
	defer s.lock()()
	return len(s.st.tickets)
}

// HistoryFor returns the audit entries of a ticket.
func (s *Store) HistoryFor(ticketID int64) []domain.TicketHistory {
	defer s.lock()()
	var out []domain.TicketHistory
	for _, h := range s.st.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out
}

type users struct{ s *Store }

func (r users) Create(_ context.Context, u *domain.User) error {
	defer r.s.lock()()
	for _, existing := range r.s.st.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = r.s.st.id()
	u.CreatedAt = r.s.clock()
	u.UpdatedAt = u.CreatedAt
	r.s.st.users[u.ID] = *u
	return nil
}

func (r users) GetByID(_ context.Context, id int64) (*domain.User, error) {
	defer r.s.lock()()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.st.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r users) List(_ context.Context) ([]domain.User, error) {
	defer r.s.lock()()
	return r.sorted(func(domain.User) bool { return true }), nil
}

func (r users) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	defer r.s.lock()()
	return r.sorted(func(u domain.User) bool { return u.Role == role }), nil
}

func (r users) sorted(keep func(domain.User) bool) []domain.User {
	var out []domain.User
	for _, u := range r.s.st.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r users) UpdatePassword(_ context.Context, id int64, hash string) error {
	defer r.s.lock()()
	u, ok := r.s.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.s.clock()
	r.s.st.users[id] = u
	return nil
}

func (r users) UpdatePushToken(_ context.Context, id int64, token *string) error {
	defer r.s.lock()()
	u, ok := r.s.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = token
	r.s.st.users[id] = u
	return nil
}

type customers struct{ s *Store }

func (r customers) Create(_ context.Context, c *domain.Customer) error {
	defer r.s.lock()()
	for _, existing := range r.s.st.customers {
		if existing.Identifier == c.Identifier {
			return repository.ErrDuplicate
		}
	}
	c.ID = r.s.st.id()
	c.CreatedAt = r.s.clock()
	c.UpdatedAt = c.CreatedAt
	r.s.st.customers[c.ID] = *c
	return nil
}

func (r customers) GetByID(_ context.Context, id int64) (*domain.Customer, error) {
	defer r.s.lock()()
	c, ok := r.s.st.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r customers) GetByIdentifier(_ context.Context, identifier string) (*domain.Customer, error) {
	defer r.s.lock()()
	for _, c := range r.s.st.customers {
		if c.Identifier == identifier {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r customers) UpdateContact(_ context.Context, id int64, name, address, phone string) error {
	defer r.s.lock()()
	c, ok := r.s.st.customers[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Name, c.Address, c.PhoneNumber = name, address, phone
	c.UpdatedAt = r.s.clock()
	r.s.st.customers[id] = c
	return nil
}

type tickets struct{ s *Store }

func (r tickets) Create(_ context.Context, t *domain.Ticket) error {
	defer r.s.lock()()
	if _, ok := r.s.st.customers[t.CustomerID]; !ok {
		return repository.ErrNotFound
	}
	now := r.s.clock()
	t.ID = r.s.st.id()
	t.Status = domain.TicketStatusPending
	t.TechStatus = nil
	t.AssignedTo = nil
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.st.tickets[t.ID] = *t
	return nil
}

func (r tickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	defer r.s.lock()()
	t, ok := r.s.st.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r tickets) Approve(_ context.Context, id, approverID, assigneeID int64) (*domain.Ticket, error) {
	defer r.s.lock()()
	t, ok := r.s.st.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := r.s.clock()
	t.Status = domain.TicketStatusApproved
	t.ApprovedBy = &approverID
	t.ApprovedAt = &now
	t.AssignedTo = &assigneeID
	t.TechStatus = nil
	t.StartedAt = nil
	t.CompletedAt = nil
	t.UpdatedAt = now
	r.s.st.tickets[id] = t
	return &t, nil
}

func (r tickets) Reject(_ context.Context, id, approverID int64) (*domain.Ticket, error) {
	defer r.s.lock()()
	t, ok := r.s.st.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := r.s.clock()
	t.Status = domain.TicketStatusRejected
	t.ApprovedBy = &approverID
	t.ApprovedAt = &now
	t.AssignedTo = nil
	t.TechStatus = nil
	t.UpdatedAt = now
	r.s.st.tickets[id] = t
	return &t, nil
}

func (r tickets) GetWorkContext(_ context.Context, id, techID int64) (*domain.TechWorkContext, error) {
	defer r.s.lock()()
	t, ok := r.s.st.tickets[id]
	if !ok || !t.IsAssignedTo(techID) || t.Status != domain.TicketStatusApproved {
		return nil, repository.ErrNotFound
	}
	tech, ok := r.s.st.users[techID]
	if !ok || tech.Role != domain.RoleTech {
		return nil, repository.ErrNotFound
	}
	return &domain.TechWorkContext{
		TicketID:    t.ID,
		Title:       t.Title,
		RequestedBy: t.RequestedBy,
		ApprovedBy:  t.ApprovedBy,
		Status:      t.Status,
		TechStatus:  t.TechStatus,
		TechName:    tech.Name,
	}, nil
}

func (r tickets) UpdateTechStatus(_ context.Context, id, techID int64, status domain.TechStatus) (*domain.Ticket, error) {
	defer r.s.lock()()
	t, ok := r.s.st.tickets[id]
	if !ok || !t.IsAssignedTo(techID) || t.Status != domain.TicketStatusApproved {
		return nil, repository.ErrNotFound
	}
	if t.TechStatus != nil && *t.TechStatus == domain.TechStatusCompleted {
		return nil, repository.ErrNotFound
	}
	now := r.s.clock()
	t.TechStatus = &status
	t.LastUpdatedBy = &techID
	t.UpdatedAt = now
	switch status {
	case domain.TechStatusInProgress:
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
	case domain.TechStatusCompleted:
		t.CompletedAt = &now
	}
	r.s.st.tickets[id] = t
	return &t, nil
}

func (r tickets) ListAll(_ context.Context) ([]domain.TicketView, error) {
	defer r.s.lock()()
	return r.views(func(domain.Ticket) bool { return true }), nil
}

func (r tickets) ListByRequester(_ context.Context, requesterID int64) ([]domain.TicketView, error) {
	defer r.s.lock()()
	return r.views(func(t domain.Ticket) bool { return t.RequestedBy == requesterID }), nil
}

func (r tickets) ListAssigned(_ context.Context, techID int64) ([]domain.TicketView, error) {
	defer r.s.lock()()
	return r.views(func(t domain.Ticket) bool {
		return t.IsAssignedTo(techID) && (t.Status == domain.TicketStatusApproved || t.TechStatus != nil)
	}), nil
}

func (r tickets) views(keep func(domain.Ticket) bool) []domain.TicketView {
	var out []domain.TicketView
	for _, t := range r.s.st.tickets {
		if !keep(t) {
			continue
		}
		view := domain.TicketView{Ticket: t}
		if t.AssignedTo != nil {
			if u, ok := r.s.st.users[*t.AssignedTo]; ok {
				name := u.Name
				view.AssignedToName = &name
			}
		}
		if t.ApprovedBy != nil {
			if u, ok := r.s.st.users[*t.ApprovedBy]; ok {
				name := u.Name
				view.ApprovedByName = &name
			}
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

type history struct{ s *Store }

func (r history) Create(_ context.Context, h *domain.TicketHistory) error {
	defer r.s.lock()()
	h.ID = r.s.st.id()
	h.CreatedAt = r.s.clock()
	r.s.st.history = append(r.s.st.history, *h)
	return nil
}

func (r history) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	defer r.s.lock()()
	var out []domain.TicketHistory
	for _, h := range r.s.st.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type reports struct{ s *Store }

func (r reports) TechSummary(_ context.Context, from, to time.Time) ([]domain.TechSummaryRow, error) {
	defer r.s.lock()()
	end := to.AddDate(0, 0, 1)
	byTech := map[int64]*domain.TechSummaryRow{}
	var durations = map[int64][]float64{}
	for _, u := range r.s.st.users {
		if u.Role == domain.RoleTech {
			byTech[u.ID] = &domain.TechSummaryRow{TechID: u.ID, TechName: u.Name}
		}
	}
	for _, t := range r.s.st.tickets {
		if t.TechStatus == nil || *t.TechStatus != domain.TechStatusCompleted || t.CompletedAt == nil || t.AssignedTo == nil {
			continue
		}
		if t.CompletedAt.Before(from) || !t.CompletedAt.Before(end) {
			continue
		}
		row, ok := byTech[*t.AssignedTo]
		if !ok {
			continue
		}
		row.ServicesCompleted++
		if t.StartedAt != nil {
			durations[row.TechID] = append(durations[row.TechID], t.CompletedAt.Sub(*t.StartedAt).Minutes())
		}
	}
	out := make([]domain.TechSummaryRow, 0, len(byTech))
	for id, row := range byTech {
		ds := durations[id]
		for i, d := range ds {
			row.TotalMinutes += d
			if i == 0 || d < row.MinMinutes {
				row.MinMinutes = d
			}
			if d > row.MaxMinutes {
				row.MaxMinutes = d
			}
		}
		if len(ds) > 0 {
			row.AvgMinutes = row.TotalMinutes / float64(len(ds))
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ServicesCompleted != out[j].ServicesCompleted {
			return out[i].ServicesCompleted > out[j].ServicesCompleted
		}
		return out[i].TechName < out[j].TechName
	})
	return out, nil
}
