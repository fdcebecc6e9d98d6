package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/pkg/tool"
	"github.com/fatflowers/tollgate/pkg/types"
)

type memberKey struct {
	userID      int64
	communityID string
}

// MemoryStore keeps everything in process memory. It backs local runs
// (database.driver=memory) and the service tests.
type MemoryStore struct {
	mu          sync.Mutex
	now         func() time.Time
	communities map[string]*models.Community
	groups      map[string]*models.CommunityGroup
	plans       map[string]*models.SubscriptionPlan
	payments    map[string]*models.Payment
	members     map[memberKey]*models.Member
	memberLogs  []*models.MemberLog
	inviteLinks []*models.InviteLink
	jobs        map[string]*models.BroadcastJob
	eventLogs   map[string]*models.WebhookEventLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		communities: map[string]*models.Community{},
		groups:      map[string]*models.CommunityGroup{},
		plans:       map[string]*models.SubscriptionPlan{},
		payments:    map[string]*models.Payment{},
		members:     map[memberKey]*models.Member{},
		jobs:        map[string]*models.BroadcastJob{},
		eventLogs:   map[string]*models.WebhookEventLog{},
	}
}

func copyOf[T any](v *T) *T {
	cp := *v
	return &cp
}

// PutCommunity, PutGroup, PutPlan and PutPayment seed rows owned by the admin side.

func (s *MemoryStore) PutCommunity(c *models.Community) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = tool.GenerateUUIDV7()
	}
	s.communities[c.ID] = copyOf(c)
}

func (s *MemoryStore) PutGroup(g *models.CommunityGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = tool.GenerateUUIDV7()
	}
	s.groups[g.ID] = copyOf(g)
}

func (s *MemoryStore) PutPlan(p *models.SubscriptionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	s.plans[p.ID] = copyOf(p)
}

func (s *MemoryStore) PutPayment(p *models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.payments[p.ID] = copyOf(p)
}

// MemberLogs returns a snapshot of the recorded transitions.
func (s *MemoryStore) MemberLogs() []*models.MemberLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.memberLogs)
}

// EventLog returns a stored audit row by id.
func (s *MemoryStore) EventLog(id string) (*models.WebhookEventLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.eventLogs[id]
	if !ok {
		return nil, false
	}
	return copyOf(l), true
}

// EventLogs returns all stored audit rows.
func (s *MemoryStore) EventLogs() []*models.WebhookEventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.WebhookEventLog, 0, len(s.eventLogs))
	for _, l := range s.eventLogs {
		out = append(out, copyOf(l))
	}
	slices.SortFunc(out, func(a, b *models.WebhookEventLog) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// InviteLinks returns all stored invite link rows.
func (s *MemoryStore) InviteLinks() []*models.InviteLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.InviteLink, 0, len(s.inviteLinks))
	for _, l := range s.inviteLinks {
		out = append(out, copyOf(l))
	}
	return out
}

func (s *MemoryStore) FindMember(_ context.Context, userID int64, communityID string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey{userID, communityID}]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) UpsertMember(_ context.Context, m *models.Member) error {
	if m.ExternalUserID == 0 || m.CommunityID == "" {
		return fmt.Errorf("member key incomplete: user=%d community=%q", m.ExternalUserID, m.CommunityID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{m.ExternalUserID, m.CommunityID}
	now := s.now()
	if existing, ok := s.members[key]; ok {
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
	} else {
		if m.ID == "" {
			m.ID = tool.GenerateUUIDV7()
		}
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.members[key] = m.Clone()
	return nil
}

func (s *MemoryStore) ListMembersByUser(_ context.Context, userID int64) ([]*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Member
	for k, m := range s.members {
		if k.userID == userID {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Member) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListMembers(_ context.Context, q MemberQuery) ([]*models.Member, error) {
	if len(q.Filters) > 0 {
		return nil, ErrFiltersUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Member
	for k, m := range s.members {
		if len(q.CommunityIDs) > 0 && !slices.Contains(q.CommunityIDs, k.communityID) {
			continue
		}
		if !MatchesFilter(m, q) {
			continue
		}
		out = append(out, m.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Member) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareInt64(a.ExternalUserID, b.ExternalUserID)
	})
	return paginate(out, q.Offset, q.Limit), nil
}

func (s *MemoryStore) ListExpiredMembers(_ context.Context, now time.Time, limit int) ([]*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Member
	for _, m := range s.members {
		if m.SubscriptionStatus == types.SubscriptionStatusActive && m.SubscriptionEnd != nil && m.SubscriptionEnd.Before(now) {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Member) int { return a.SubscriptionEnd.Compare(*b.SubscriptionEnd) })
	return paginate(out, 0, limit), nil
}

func (s *MemoryStore) SaveMemberLog(_ context.Context, log *models.MemberLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	log.CreatedAt = s.now()
	s.memberLogs = append(s.memberLogs, copyOf(log))
	return nil
}

func (s *MemoryStore) FindLatestSuccessfulPayment(_ context.Context, q PaymentLookup) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.Payment
	for _, p := range s.payments {
		if p.CommunityID != q.CommunityID || p.Status != types.PaymentStatusSuccessful {
			continue
		}
		byID := q.UserID != 0 && p.PayerExternalID == q.UserID
		byName := q.Username != "" && p.PayerUsername == q.Username
		if !byID && !byName {
			continue
		}
		if best == nil || newerPayment(p, best) {
			best = p
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return copyOf(best), nil
}

// newerPayment orders by created_at, then id, so duplicate grants resolve to the newest row.
func newerPayment(a, b *models.Payment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (s *MemoryStore) FindPayment(_ context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(p), nil
}

func (s *MemoryStore) ListPayments(_ context.Context, q PaymentQuery) ([]*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Payment
	for _, p := range s.payments {
		if len(q.CommunityIDs) > 0 && !slices.Contains(q.CommunityIDs, p.CommunityID) {
			continue
		}
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if !q.Since.IsZero() && p.CreatedAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !p.CreatedAt.Before(q.Until) {
			continue
		}
		out = append(out, copyOf(p))
	}
	slices.SortFunc(out, func(a, b *models.Payment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) CreatePayment(_ context.Context, p *models.Payment) (*models.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ProviderChargeID != nil {
		for _, existing := range s.payments {
			if existing.ProviderChargeID != nil && *existing.ProviderChargeID == *p.ProviderChargeID {
				return copyOf(existing), false, nil
			}
		}
	}
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = p.CreatedAt
	s.payments[p.ID] = copyOf(p)
	return copyOf(p), true, nil
}

func (s *MemoryStore) SetPaymentInviteLink(_ context.Context, paymentID, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return ErrNotFound
	}
	p.InviteLink = &link
	return nil
}

func (s *MemoryStore) ClearPaymentInviteLinks(_ context.Context, userID int64, communityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.PayerExternalID == userID && p.CommunityID == communityID {
			p.InviteLink = nil
		}
	}
	return nil
}

func (s *MemoryStore) FindPlan(_ context.Context, id string) (*models.SubscriptionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(p), nil
}

func (s *MemoryStore) FindCommunity(_ context.Context, id string) (*models.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(c), nil
}

func (s *MemoryStore) findCommunity(match func(c *models.Community) bool) (*models.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.communities {
		if match(c) {
			return copyOf(c), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindCommunityByChatID(_ context.Context, chatID int64) (*models.Community, error) {
	return s.findCommunity(func(c *models.Community) bool {
		return c.ExternalChatID != nil && *c.ExternalChatID == chatID
	})
}

func (s *MemoryStore) FindCommunityByCustomLink(_ context.Context, link string) (*models.Community, error) {
	return s.findCommunity(func(c *models.Community) bool {
		return c.CustomLink != nil && *c.CustomLink == link
	})
}

func (s *MemoryStore) FindCommunityByVerificationCode(_ context.Context, code string) (*models.Community, error) {
	return s.findCommunity(func(c *models.Community) bool {
		return c.VerificationCode != nil && *c.VerificationCode == code
	})
}

func (s *MemoryStore) BindCommunityChat(_ context.Context, communityID string, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[communityID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.communities {
		if id != communityID && other.ExternalChatID != nil && *other.ExternalChatID == chatID {
			return fmt.Errorf("chat %d already bound to community %s", chatID, id)
		}
	}
	c.ExternalChatID = &chatID
	c.VerificationCode = nil
	c.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetCommunityInviteLink(_ context.Context, communityID, link string, expireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[communityID]
	if !ok {
		return ErrNotFound
	}
	c.InviteLink = &link
	c.InviteLinkExpireAt = &expireAt
	c.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) ListGroupCommunityIDs(_ context.Context, groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, ErrNotFound
	}
	var ids []string
	for id, c := range s.communities {
		if c.GroupID != nil && *c.GroupID == groupID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) SaveInviteLink(_ context.Context, l *models.InviteLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	l.CreatedAt = s.now()
	s.inviteLinks = append(s.inviteLinks, copyOf(l))
	return nil
}

func (s *MemoryStore) RevokeMemberInviteLinks(_ context.Context, userID int64, communityID string, at time.Time) ([]*models.InviteLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var revoked []*models.InviteLink
	for _, l := range s.inviteLinks {
		if l.CommunityID != communityID || l.MemberUserID == nil || *l.MemberUserID != userID || l.RevokedAt != nil {
			continue
		}
		l.RevokedAt = &at
		revoked = append(revoked, copyOf(l))
	}
	return revoked, nil
}

func (s *MemoryStore) CreateBroadcastJob(_ context.Context, job *models.BroadcastJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = tool.GenerateUUIDV7()
	}
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = copyOf(job)
	return nil
}

func (s *MemoryStore) FinishBroadcastJob(_ context.Context, job *models.BroadcastJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	job.UpdatedAt = s.now()
	s.jobs[job.ID] = copyOf(job)
	return nil
}

func (s *MemoryStore) FindBroadcastJob(_ context.Context, id string) (*models.BroadcastJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(j), nil
}

func (s *MemoryStore) CreateEventLog(_ context.Context, log *models.WebhookEventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	log.CreatedAt = s.now()
	log.UpdatedAt = log.CreatedAt
	s.eventLogs[log.ID] = copyOf(log)
	return nil
}

func (s *MemoryStore) FinishEventLog(_ context.Context, log *models.WebhookEventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.eventLogs[log.ID]; !ok {
		return ErrNotFound
	}
	log.UpdatedAt = s.now()
	s.eventLogs[log.ID] = copyOf(log)
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
