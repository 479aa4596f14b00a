package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Store with the same compare-and-set rules as the
// SQLite store.
type memStore struct {
	mu      sync.Mutex
	leads   map[string]*LeadRecord
	order   []string
	history map[string][]*LeadRecord

	listErr       error
	upsertErr     error
	transitionErr func(req TransitionRequest) error
	writes        int
}

func newMemStore() *memStore {
	return &memStore{
		leads:   make(map[string]*LeadRecord),
		history: make(map[string][]*LeadRecord),
	}
}

// put stores rec as-is, bypassing all checks.
func (s *memStore) put(rec *LeadRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Email = NormalizeEmail(rec.Email)
	if rec.ID == "" {
		rec.ID = LeadID(rec.Email)
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	if _, ok := s.leads[rec.Email]; !ok {
		s.order = append(s.order, rec.Email)
	}
	s.leads[rec.Email] = rec.Clone()
}

func (s *memStore) get(email string) *LeadRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.leads[NormalizeEmail(email)]
	if !ok {
		return nil
	}
	return rec.Clone()
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) Get(_ context.Context, email string) (*LeadRecord, error) {
	rec := s.get(email)
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return rec, nil
}

func (s *memStore) UpsertSourced(_ context.Context, lead Lead) (*LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	email := lead.Identity()
	if email == "" {
		return nil, NewValidationError("lead has no email", nil)
	}

	rec, ok := s.leads[email]
	if !ok {
		now := time.Now().UTC()
		rec = &LeadRecord{
			ID:         LeadID(email),
			Email:      email,
			Attributes: lead.Attributes,
			State:      StateNew,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.leads[email] = rec
		s.order = append(s.order, email)
		s.writes++
		return rec.Clone(), nil
	}
	if rec.Attributes != lead.Attributes {
		rec.Attributes = lead.Attributes
		rec.Version++
		rec.UpdatedAt = time.Now().UTC()
		s.writes++
	}
	return rec.Clone(), nil
}

func (s *memStore) Transition(_ context.Context, req TransitionRequest) (*LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transitionErr != nil {
		if err := s.transitionErr(req); err != nil {
			return nil, err
		}
	}
	if !CanTransition(req.From, req.To) {
		return nil, NewIntegrityError(fmt.Sprintf("transition %s -> %s is not allowed", req.From, req.To), nil)
	}
	if req.To == StateInitialSent && req.Fields.InitialSentAt == nil {
		return nil, NewIntegrityError("INITIAL_SENT requires initial_sent_at", nil)
	}
	if req.To == StateFollowupSent && req.Fields.LastFollowupSentAt == nil {
		return nil, NewIntegrityError("FOLLOWUP_SENT requires last_followup_sent_at", nil)
	}

	rec, ok := s.leads[NormalizeEmail(req.Email)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.Email)
	}
	if rec.State != req.From {
		return nil, fmt.Errorf("%w: %s is %s", ErrConflict, rec.Email, rec.State)
	}
	if rec.ClaimToken != "" && rec.ClaimToken != req.Token {
		return nil, fmt.Errorf("%w: %s is claimed", ErrConflict, rec.Email)
	}

	f := req.Fields
	rec.State = req.To
	rec.ClaimToken = ""
	rec.ClaimedAt = nil
	switch req.To {
	case StateInitialSent, StateFollowupSent, StateReplied, StateClosed:
		rec.ErrorCount = 0
		rec.DispatchErrorCount = 0
		rec.LastError = ""
	}
	if f.InitialSentAt != nil {
		rec.InitialSentAt = cloneTime(f.InitialSentAt)
	}
	if f.LastFollowupSentAt != nil {
		rec.LastFollowupSentAt = cloneTime(f.LastFollowupSentAt)
	}
	if f.ReplyDetectedAt != nil {
		rec.ReplyDetectedAt = cloneTime(f.ReplyDetectedAt)
	}
	if f.ClosedAt != nil {
		rec.ClosedAt = cloneTime(f.ClosedAt)
	}
	if f.MessageID != "" {
		if req.To == StateInitialSent {
			rec.InitialMessageID = f.MessageID
		} else if req.To == StateFollowupSent {
			rec.FollowupMessageID = f.MessageID
		}
	}
	if f.LastError != nil {
		rec.LastError = *f.LastError
	}
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	s.writes++
	return rec.Clone(), nil
}

func (s *memStore) Claim(_ context.Context, email string, from LeadState, token string, now time.Time, ttl time.Duration) (*LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.leads[NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	if rec.State != from {
		return nil, fmt.Errorf("%w: %s is %s", ErrConflict, rec.Email, rec.State)
	}
	if rec.ClaimToken != "" {
		if rec.ClaimedAt != nil && now.Sub(*rec.ClaimedAt) >= ttl {
			return nil, fmt.Errorf("%w: %s", ErrStaleClaim, rec.Email)
		}
		return nil, fmt.Errorf("%w: %s is claimed", ErrConflict, rec.Email)
	}

	claimedAt := now
	rec.ClaimToken = token
	rec.ClaimedAt = &claimedAt
	rec.Version++
	s.writes++
	return rec.Clone(), nil
}

func (s *memStore) RecordFailure(_ context.Context, email string, from LeadState, token, message string, dispatch bool) (*LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.leads[NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	if rec.State != from || (rec.ClaimToken != "" && rec.ClaimToken != token) {
		return nil, fmt.Errorf("%w: %s", ErrConflict, rec.Email)
	}

	rec.ErrorCount++
	if dispatch {
		rec.DispatchErrorCount++
	}
	rec.LastError = message
	rec.ClaimToken = ""
	rec.ClaimedAt = nil
	rec.Version++
	s.writes++
	return rec.Clone(), nil
}

func (s *memStore) ListAll(_ context.Context) ([]*LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]*LeadRecord, 0, len(s.order))
	for _, email := range s.order {
		out = append(out, s.leads[email].Clone())
	}
	return out, nil
}

func (s *memStore) Reopen(_ context.Context, email, _, _ string) (*LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.leads[NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	if !rec.State.IsReopenable() {
		return nil, NewPermanentError("not reopenable", nil)
	}
	s.history[rec.Email] = append(s.history[rec.Email], rec.Clone())

	*rec = LeadRecord{
		ID:          rec.ID,
		Email:       rec.Email,
		Attributes:  rec.Attributes,
		State:       StateNew,
		ReopenCount: rec.ReopenCount + 1,
		Version:     rec.Version + 1,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	s.writes++
	return rec.Clone(), nil
}

// staticSource returns a fixed lead list or an error.
type staticSource struct {
	mu    sync.Mutex
	leads []Lead
	err   error
	calls int
}

func (s *staticSource) FetchLeads(_ context.Context) ([]Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Lead, len(s.leads))
	copy(out, s.leads)
	return out, nil
}

// mockCrafter records Craft calls per lead and stage.
type mockCrafter struct {
	mu    sync.Mutex
	calls map[string][]Stage
	err   error
	empty bool
}

func newMockCrafter() *mockCrafter {
	return &mockCrafter{calls: make(map[string][]Stage)}
}

func (c *mockCrafter) Craft(_ context.Context, lead Lead, stage Stage) (Content, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[lead.Identity()] = append(c.calls[lead.Identity()], stage)
	if c.err != nil {
		return Content{}, c.err
	}
	if c.empty {
		return Content{}, nil
	}
	subject := "A Partnership in Storytelling for " + lead.Attributes.Company
	if stage == StageFollowup {
		subject = "Re: " + subject
	}
	return Content{Subject: subject, Body: "Hi " + lead.Attributes.FirstName}, nil
}

func (c *mockCrafter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, stages := range c.calls {
		n += len(stages)
	}
	return n
}

// mockDeliverer records sends per lead. errFor returns the error for a lead.
type mockDeliverer struct {
	mu     sync.Mutex
	sent   map[string][]Content
	errFor func(lead Lead) error
	block  bool
	seq    int
}

func newMockDeliverer() *mockDeliverer {
	return &mockDeliverer{sent: make(map[string][]Content)}
}

func (d *mockDeliverer) Send(ctx context.Context, lead Lead, content Content) (*Receipt, error) {
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.errFor != nil {
		if err := d.errFor(lead); err != nil {
			return nil, err
		}
	}
	d.seq++
	d.sent[lead.Identity()] = append(d.sent[lead.Identity()], content)
	return &Receipt{MessageID: fmt.Sprintf("msg-%d", d.seq), SentAt: time.Now()}, nil
}

func (d *mockDeliverer) sentTo(email string) []Content {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Content(nil), d.sent[email]...)
}

func (d *mockDeliverer) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.sent {
		n += len(c)
	}
	return n
}

// mockReplies reports replies for a fixed set of emails.
type mockReplies struct {
	mu      sync.Mutex
	replied map[string]bool
	err     error
	calls   []string
	since   map[string]time.Time
}

func newMockReplies(emails ...string) *mockReplies {
	r := &mockReplies{replied: make(map[string]bool), since: make(map[string]time.Time)}
	for _, e := range emails {
		r.replied[e] = true
	}
	return r
}

func (r *mockReplies) HasRepliedSince(_ context.Context, lead Lead, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, lead.Identity())
	r.since[lead.Identity()] = since
	if r.err != nil {
		return false, r.err
	}
	return r.replied[lead.Identity()], nil
}

func (r *mockReplies) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// mockScreener denies the listed emails.
type mockScreener struct {
	denied map[string]string
	err    error
}

func (s *mockScreener) Screen(_ context.Context, lead Lead) (*ScreenResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if reason, ok := s.denied[lead.Identity()]; ok {
		return &ScreenResult{Allowed: false, Reasons: []string{reason}}, nil
	}
	return &ScreenResult{Allowed: true}, nil
}

// countingRecorder counts transitions and errors.
type countingRecorder struct {
	mu          sync.Mutex
	transitions map[string]int
	errors      map[ErrorClass]int
	portCalls   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		transitions: make(map[string]int),
		errors:      make(map[ErrorClass]int),
		portCalls:   make(map[string]int),
	}
}

func (r *countingRecorder) RecordTransition(from, to LeadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[string(from)+"->"+string(to)]++
}

func (r *countingRecorder) RecordPortCall(port, _ string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portCalls[port]++
}

func (r *countingRecorder) RecordError(class ErrorClass, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[class]++
}

var errBoom = errors.New("boom")
