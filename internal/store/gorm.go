package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/pkg/tool"
	"github.com/fatflowers/tollgate/pkg/types"
)

// Models lists every table owned by the engine, in migration order.
func Models() []any {
	return []any{
		&models.CommunityGroup{},
		&models.Community{},
		&models.SubscriptionPlan{},
		&models.Payment{},
		&models.Member{},
		&models.MemberLog{},
		&models.InviteLink{},
		&models.BroadcastJob{},
		&models.WebhookEventLog{},
	}
}

// GormStore is the relational Store. It works against postgres in production and sqlite in tests.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) FindMember(ctx context.Context, userID int64, communityID string) (*models.Member, error) {
	var m models.Member
	err := s.db.WithContext(ctx).
		Where("external_user_id = ? AND community_id = ?", userID, communityID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

var memberUpdateColumns = []string{
	"username", "first_name", "is_active", "subscription_status", "subscription_plan_id",
	"subscription_start", "subscription_end", "last_payment_id", "joined_at", "left_at", "updated_at",
}

// UpsertMember writes the full member row keyed by (external_user_id, community_id).
// The insert carries ON CONFLICT so concurrent first writers converge on one row.
func (s *GormStore) UpsertMember(ctx context.Context, m *models.Member) error {
	if m.ExternalUserID == 0 || m.CommunityID == "" {
		return fmt.Errorf("member key incomplete: user=%d community=%q", m.ExternalUserID, m.CommunityID)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Member
		err := tx.Select("id", "created_at").
			Where("external_user_id = ? AND community_id = ?", m.ExternalUserID, m.CommunityID).
			First(&existing).Error
		switch {
		case err == nil:
			m.ID = existing.ID
			m.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			if m.ID == "" {
				m.ID = tool.GenerateUUIDV7()
			}
		default:
			return err
		}
		m.UpdatedAt = time.Now()
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "community_id"}},
			DoUpdates: clause.AssignmentColumns(memberUpdateColumns),
		}).Create(m).Error
	})
}

func (s *GormStore) ListMembersByUser(ctx context.Context, userID int64) ([]*models.Member, error) {
	var members []*models.Member
	if err := s.db.WithContext(ctx).Where("external_user_id = ?", userID).Order("created_at").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (s *GormStore) ListMembers(ctx context.Context, q MemberQuery) ([]*models.Member, error) {
	tx := s.db.WithContext(ctx).Model(&models.Member{})
	if len(q.CommunityIDs) > 0 {
		tx = tx.Where("community_id IN ?", q.CommunityIDs)
	}
	switch q.Filter {
	case types.BroadcastFilterActive:
		tx = tx.Where("subscription_status = ?", types.SubscriptionStatusActive)
	case types.BroadcastFilterExpired:
		tx = tx.Where("subscription_status = ?", types.SubscriptionStatusExpired)
	case types.BroadcastFilterPlan:
		tx = tx.Where("subscription_plan_id = ?", q.PlanID)
	}
	if len(q.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(q.Filters)}})
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var members []*models.Member
	if err := tx.Order("created_at").Order("external_user_id").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (s *GormStore) ListExpiredMembers(ctx context.Context, now time.Time, limit int) ([]*models.Member, error) {
	tx := s.db.WithContext(ctx).
		Where("subscription_status = ?", types.SubscriptionStatusActive).
		Where("subscription_end < ?", now).
		Order("subscription_end")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var members []*models.Member
	if err := tx.Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (s *GormStore) SaveMemberLog(ctx context.Context, log *models.MemberLog) error {
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	return s.db.WithContext(ctx).Create(log).Error
}

func (s *GormStore) FindLatestSuccessfulPayment(ctx context.Context, q PaymentLookup) (*models.Payment, error) {
	tx := s.db.WithContext(ctx).
		Where("community_id = ? AND status = ?", q.CommunityID, types.PaymentStatusSuccessful)
	switch {
	case q.UserID != 0 && q.Username != "":
		tx = tx.Where("payer_external_id = ? OR payer_username = ?", q.UserID, q.Username)
	case q.UserID != 0:
		tx = tx.Where("payer_external_id = ?", q.UserID)
	case q.Username != "":
		tx = tx.Where("payer_username = ?", q.Username)
	default:
		return nil, ErrNotFound
	}
	var p models.Payment
	if err := tx.Order("created_at desc").Order("id desc").First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) FindPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) ListPayments(ctx context.Context, q PaymentQuery) ([]*models.Payment, error) {
	tx := s.db.WithContext(ctx).Model(&models.Payment{})
	if len(q.CommunityIDs) > 0 {
		tx = tx.Where("community_id IN ?", q.CommunityIDs)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since)
	}
	if !q.Until.IsZero() {
		tx = tx.Where("created_at < ?", q.Until)
	}
	var payments []*models.Payment
	if err := tx.Order("created_at").Order("id").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, bool, error) {
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	if p.ProviderChargeID == nil {
		if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "provider_charge_id"}}, DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return p, true, nil
	}
	var stored models.Payment
	if err := s.db.WithContext(ctx).Where("provider_charge_id = ?", *p.ProviderChargeID).First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, false, nil
}

func (s *GormStore) SetPaymentInviteLink(ctx context.Context, paymentID, link string) error {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", paymentID).Update("invite_link", link)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ClearPaymentInviteLinks(ctx context.Context, userID int64, communityID string) error {
	return s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("payer_external_id = ? AND community_id = ?", userID, communityID).
		Update("invite_link", nil).Error
}

func (s *GormStore) FindPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) findCommunity(ctx context.Context, query string, arg any) (*models.Community, error) {
	var c models.Community
	if err := s.db.WithContext(ctx).Where(query, arg).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *GormStore) FindCommunity(ctx context.Context, id string) (*models.Community, error) {
	return s.findCommunity(ctx, "id = ?", id)
}

func (s *GormStore) FindCommunityByChatID(ctx context.Context, chatID int64) (*models.Community, error) {
	return s.findCommunity(ctx, "external_chat_id = ?", chatID)
}

func (s *GormStore) FindCommunityByCustomLink(ctx context.Context, link string) (*models.Community, error) {
	return s.findCommunity(ctx, "custom_link = ?", link)
}

func (s *GormStore) FindCommunityByVerificationCode(ctx context.Context, code string) (*models.Community, error) {
	return s.findCommunity(ctx, "verification_code = ?", code)
}

func (s *GormStore) BindCommunityChat(ctx context.Context, communityID string, chatID int64) error {
	res := s.db.WithContext(ctx).Model(&models.Community{}).
		Where("id = ?", communityID).
		Updates(map[string]any{"external_chat_id": chatID, "verification_code": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetCommunityInviteLink(ctx context.Context, communityID, link string, expireAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Community{}).
		Where("id = ?", communityID).
		Updates(map[string]any{"invite_link": link, "invite_link_expire_at": expireAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListGroupCommunityIDs(ctx context.Context, groupID string) ([]string, error) {
	var group models.CommunityGroup
	if err := s.db.WithContext(ctx).Where("id = ?", groupID).First(&group).Error; err != nil {
		return nil, notFound(err)
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Community{}).
		Where("group_id = ?", groupID).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) SaveInviteLink(ctx context.Context, l *models.InviteLink) error {
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	return s.db.WithContext(ctx).Create(l).Error
}

func (s *GormStore) RevokeMemberInviteLinks(ctx context.Context, userID int64, communityID string, at time.Time) ([]*models.InviteLink, error) {
	var links []*models.InviteLink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("member_user_id = ? AND community_id = ? AND revoked_at IS NULL", userID, communityID).
			Find(&links).Error; err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		ids := make([]string, 0, len(links))
		for _, l := range links {
			l.RevokedAt = &at
			ids = append(ids, l.ID)
		}
		return tx.Model(&models.InviteLink{}).Where("id IN ?", ids).Update("revoked_at", at).Error
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (s *GormStore) CreateBroadcastJob(ctx context.Context, job *models.BroadcastJob) error {
	if job.ID == "" {
		job.ID = tool.GenerateUUIDV7()
	}
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *GormStore) FinishBroadcastJob(ctx context.Context, job *models.BroadcastJob) error {
	return s.db.WithContext(ctx).Model(job).
		Select("status", "sent", "failed", "total", "error", "finished_at", "updated_at").
		Updates(job).Error
}

func (s *GormStore) FindBroadcastJob(ctx context.Context, id string) (*models.BroadcastJob, error) {
	var job models.BroadcastJob
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (s *GormStore) CreateEventLog(ctx context.Context, log *models.WebhookEventLog) error {
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	return s.db.WithContext(ctx).Create(log).Error
}

func (s *GormStore) FinishEventLog(ctx context.Context, log *models.WebhookEventLog) error {
	return s.db.WithContext(ctx).Model(log).
		Select("status", "handled", "result", "updated_at").
		Updates(log).Error
}
