package models

import "time"

// Community is a Telegram group or channel whose access is sold through plans.
// ExternalChatID stays nil until the bot has verified the chat.
type Community struct {
	ID             string  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name           string  `gorm:"column:name;type:varchar(255);not null" json:"name"`
	OwnerID        string  `gorm:"column:owner_id;type:varchar(64);not null;index" json:"owner_id"`
	ExternalChatID *int64  `gorm:"column:external_chat_id;uniqueIndex" json:"external_chat_id"`
	GroupID        *string `gorm:"column:group_id;type:uuid;index" json:"group_id"`
	CustomLink     *string `gorm:"column:custom_link;type:varchar(128);uniqueIndex" json:"custom_link"`
	// VerificationCode is posted as "/verify <code>" inside the chat to bind it.
	VerificationCode   *string    `gorm:"column:verification_code;type:varchar(64);uniqueIndex" json:"-"`
	InviteLink         *string    `gorm:"column:invite_link;type:varchar(255)" json:"invite_link"`
	InviteLinkExpireAt *time.Time `gorm:"column:invite_link_expire_at" json:"invite_link_expire_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (Community) TableName() string {
	return "community"
}

// CanAdmit reports whether the community is bound to a verified chat.
func (c *Community) CanAdmit() bool {
	return c != nil && c.ExternalChatID != nil
}

// CachedInviteLink returns the stored community link if it is still usable at now.
func (c *Community) CachedInviteLink(now time.Time) (string, bool) {
	if c == nil || c.InviteLink == nil || *c.InviteLink == "" {
		return "", false
	}
	if c.InviteLinkExpireAt != nil && !c.InviteLinkExpireAt.After(now) {
		return "", false
	}
	return *c.InviteLink, true
}

// CommunityGroup bundles several communities of one owner for group broadcasts.
type CommunityGroup struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	OwnerID   string    `gorm:"column:owner_id;type:varchar(64);not null;index" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CommunityGroup) TableName() string {
	return "community_group"
}
