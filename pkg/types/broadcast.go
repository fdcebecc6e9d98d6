package types

type BroadcastEntityType string

const (
	BroadcastEntityCommunity BroadcastEntityType = "community"
	BroadcastEntityGroup     BroadcastEntityType = "group"
)

type BroadcastFilter string

const (
	BroadcastFilterAll     BroadcastFilter = "all"
	BroadcastFilterActive  BroadcastFilter = "active"
	BroadcastFilterExpired BroadcastFilter = "expired"
	BroadcastFilterPlan    BroadcastFilter = "plan"
)

func (f BroadcastFilter) Valid() bool {
	switch f {
	case BroadcastFilterAll, BroadcastFilterActive, BroadcastFilterExpired, BroadcastFilterPlan:
		return true
	}
	return false
}

type BroadcastStatus string

const (
	BroadcastStatusRunning   BroadcastStatus = "running"
	BroadcastStatusCompleted BroadcastStatus = "completed"
	BroadcastStatusFailed    BroadcastStatus = "failed"
)
