package statistics

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/types"
)

type StatisticType string

const (
	// Payments: successful, excluding complimentary grants.
	StatisticTypeDailyPaymentCount StatisticType = "daily_payment_count"
	StatisticTypeDailyRevenue      StatisticType = "daily_revenue"
	StatisticTypeTotalRevenue      StatisticType = "total_revenue"

	// Members
	StatisticTypeMemberCountByStatus StatisticType = "member_count_by_status"
	StatisticTypeDailyNewMemberCount StatisticType = "daily_new_member_count"
	StatisticTypeActiveMemberCount   StatisticType = "active_member_count"
)

const defaultWindow = 30 * 24 * time.Hour

var knownTypes = []StatisticType{
	StatisticTypeDailyPaymentCount,
	StatisticTypeDailyRevenue,
	StatisticTypeTotalRevenue,
	StatisticTypeMemberCountByStatus,
	StatisticTypeDailyNewMemberCount,
	StatisticTypeActiveMemberCount,
}

type DataItem struct {
	ID StatisticType `json:"id"`
}

// Request selects the communities and the reporting window. Dates are UTC days.
// Since defaults to 30 days before Until, Until defaults to now.
type Request struct {
	CommunityIDs []string    `json:"community_ids"`
	Since        *time.Time  `json:"since"`
	Until        *time.Time  `json:"until"`
	DataItems    []*DataItem `json:"data_items" binding:"required"`
}

type ResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
	// Value2 carries a secondary count, e.g. in-chat members next to live subscriptions.
	Value2 int64 `json:"value2,omitempty"`
	// Amount is a decimal string for money series.
	Amount string `json:"amount,omitempty"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

// Service reports payment and member statistics per community.
type Service struct {
	store store.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func New(st store.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

// window is the resolved request range plus the rows it selects.
// Each source is loaded at most once per Get, however many items need it.
type window struct {
	since, until time.Time

	paymentsOnce sync.Once
	payments     []*models.Payment
	paymentsErr  error

	membersOnce sync.Once
	members     []*models.Member
	membersErr  error
}

func (s *Service) successfulPayments(ctx context.Context, req *Request, w *window) ([]*models.Payment, error) {
	w.paymentsOnce.Do(func() {
		w.payments, w.paymentsErr = s.store.ListPayments(ctx, store.PaymentQuery{
			CommunityIDs: req.CommunityIDs,
			Status:       types.PaymentStatusSuccessful,
			Since:        w.since,
			Until:        w.until,
		})
		w.payments = lo.Reject(w.payments, func(p *models.Payment, _ int) bool {
			return p.Provider == types.PaymentProviderInner
		})
	})
	return w.payments, w.paymentsErr
}

func (s *Service) allMembers(ctx context.Context, req *Request, w *window) ([]*models.Member, error) {
	w.membersOnce.Do(func() {
		w.members, w.membersErr = s.store.ListMembers(ctx, store.MemberQuery{
			CommunityIDs: req.CommunityIDs,
			Filter:       types.BroadcastFilterAll,
		})
	})
	return w.members, w.membersErr
}

func day(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func (s *Service) getDailyPaymentCount(ctx context.Context, req *Request, w *window) ([]ResponseDataItem, error) {
	payments, err := s.successfulPayments(ctx, req, w)
	if err != nil {
		return nil, err
	}
	byDay := lo.CountValuesBy(payments, func(p *models.Payment) string { return day(p.CreatedAt) })
	days := lo.Keys(byDay)
	slices.Sort(days)
	return lo.Map(days, func(d string, _ int) ResponseDataItem {
		return ResponseDataItem{Date: d, Value: int64(byDay[d])}
	}), nil
}

type dayCurrency struct {
	day, currency string
}

func (s *Service) getDailyRevenue(ctx context.Context, req *Request, w *window) ([]ResponseDataItem, error) {
	payments, err := s.successfulPayments(ctx, req, w)
	if err != nil {
		return nil, err
	}
	sums := map[dayCurrency]decimal.Decimal{}
	counts := map[dayCurrency]int64{}
	for _, p := range payments {
		k := dayCurrency{day(p.CreatedAt), p.Currency}
		sums[k] = sums[k].Add(p.Amount)
		counts[k]++
	}
	keys := lo.Keys(sums)
	slices.SortFunc(keys, func(a, b dayCurrency) int {
		if a.day != b.day {
			return strings.Compare(a.day, b.day)
		}
		return strings.Compare(a.currency, b.currency)
	})
	return lo.Map(keys, func(k dayCurrency, _ int) ResponseDataItem {
		return ResponseDataItem{Date: k.day, Label: k.currency, Value: counts[k], Amount: sums[k].String()}
	}), nil
}

// getTotalRevenue is the running sum per currency over every day in the window that had revenue.
func (s *Service) getTotalRevenue(ctx context.Context, req *Request, w *window) ([]ResponseDataItem, error) {
	daily, err := s.getDailyRevenue(ctx, req, w)
	if err != nil {
		return nil, err
	}
	days := lo.Uniq(lo.Map(daily, func(it ResponseDataItem, _ int) string { return it.Date }))
	currencies := lo.Uniq(lo.Map(daily, func(it ResponseDataItem, _ int) string { return it.Label }))
	slices.Sort(currencies)
	perDay := lo.SliceToMap(daily, func(it ResponseDataItem) (dayCurrency, ResponseDataItem) {
		return dayCurrency{it.Date, it.Label}, it
	})

	running := map[string]decimal.Decimal{}
	runningCount := map[string]int64{}
	out := make([]ResponseDataItem, 0, len(days)*len(currencies))
	for _, d := range days {
		for _, cur := range currencies {
			if it, ok := perDay[dayCurrency{d, cur}]; ok {
				running[cur] = running[cur].Add(decimal.RequireFromString(it.Amount))
				runningCount[cur] += it.Value
			}
			out = append(out, ResponseDataItem{Date: d, Label: cur, Value: runningCount[cur], Amount: running[cur].String()})
		}
	}
	return out, nil
}

func (s *Service) getMemberCountByStatus(ctx context.Context, req *Request, w *window) ([]ResponseDataItem, error) {
	members, err := s.allMembers(ctx, req, w)
	if err != nil {
		return nil, err
	}
	byStatus := lo.CountValuesBy(members, func(m *models.Member) types.SubscriptionStatus { return m.SubscriptionStatus })
	statuses := []types.SubscriptionStatus{
		types.SubscriptionStatusActive,
		types.SubscriptionStatusExpired,
		types.SubscriptionStatusRemoved,
		types.SubscriptionStatusInactive,
	}
	return lo.Map(statuses, func(st types.SubscriptionStatus, _ int) ResponseDataItem {
		return ResponseDataItem{Label: string(st), Value: int64(byStatus[st])}
	}), nil
}

func (s *Service) getDailyNewMemberCount(ctx context.Context, req *Request, w *window) ([]ResponseDataItem, error) {
	members, err := s.allMembers(ctx, req, w)
	if err != nil {
		return nil, err
	}
	inWindow := lo.Filter(members, func(m *models.Member, _ int) bool {
		return !m.CreatedAt.Before(w.since) && m.CreatedAt.Before(w.until)
	})
	byDay := lo.CountValuesBy(inWindow, func(m *models.Member) string { return day(m.CreatedAt) })
	days := lo.Keys(byDay)
	slices.Sort(days)
	return lo.Map(days, func(d string, _ int) ResponseDataItem {
		return ResponseDataItem{Date: d, Value: int64(byDay[d])}
	}), nil
}

// getActiveMemberCount reports live subscriptions in Value and members present in the chat in Value2.
func (s *Service) getActiveMemberCount(ctx context.Context, req *Request, w *window) ([]ResponseDataItem, error) {
	members, err := s.allMembers(ctx, req, w)
	if err != nil {
		return nil, err
	}
	now := s.now()
	live := lo.CountBy(members, func(m *models.Member) bool { return m.HasLiveSubscription(now) })
	present := lo.CountBy(members, func(m *models.Member) bool { return m.IsActive })
	return []ResponseDataItem{{Date: day(now), Value: int64(live), Value2: int64(present)}}, nil
}

func (s *Service) getStatistic(ctx context.Context, req *Request, w *window, item *DataItem) ([]ResponseDataItem, error) {
	switch item.ID {
	case StatisticTypeDailyPaymentCount:
		return s.getDailyPaymentCount(ctx, req, w)
	case StatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx, req, w)
	case StatisticTypeTotalRevenue:
		return s.getTotalRevenue(ctx, req, w)
	case StatisticTypeMemberCountByStatus:
		return s.getMemberCountByStatus(ctx, req, w)
	case StatisticTypeDailyNewMemberCount:
		return s.getDailyNewMemberCount(ctx, req, w)
	case StatisticTypeActiveMemberCount:
		return s.getActiveMemberCount(ctx, req, w)
	default:
		return nil, apperr.Validation("statistics", "invalid data item id: %s", item.ID)
	}
}

func (s *Service) resolveWindow(req *Request) (*window, error) {
	until := s.now()
	if req.Until != nil {
		until = *req.Until
	}
	since := until.Add(-defaultWindow)
	if req.Since != nil {
		since = *req.Since
	}
	if !since.Before(until) {
		return nil, apperr.Validation("statistics", "since must be before until")
	}
	return &window{since: since, until: until}, nil
}

// Get computes every requested data item concurrently. Unknown ids fail the whole request.
func (s *Service) Get(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || len(req.DataItems) == 0 {
		return nil, apperr.Validation("statistics", "data_items is empty")
	}
	for _, item := range req.DataItems {
		if item == nil || !lo.Contains(knownTypes, item.ID) {
			id := StatisticType("")
			if item != nil {
				id = item.ID
			}
			return nil, apperr.Validation("statistics", "invalid data item id: %s", id)
		}
	}
	w, err := s.resolveWindow(req)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[StatisticType][]ResponseDataItem, len(req.DataItems))
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range lo.UniqBy(req.DataItems, func(it *DataItem) StatisticType { return it.ID }) {
		g.Go(func() error {
			res, err := s.getStatistic(gctx, req, w, item)
			if err != nil {
				return err
			}
			mu.Lock()
			results[item.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("statistics_failed", "err", err)
		return nil, apperr.Store("statistics", err)
	}
	return &Response{DataItems: results}, nil
}

