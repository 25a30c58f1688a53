package domain

import "time"

// Shop 商戶註冊資料。ShopKey 以 bcrypt 雜湊存放，
// AllowedDomains 為逗號分隔的來源域名白名單，空值表示不限。
type Shop struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ShopID         string    `gorm:"uniqueIndex;size:64" json:"shopId"`
	Name           string    `gorm:"size:128" json:"name"`
	ShopKeyHash    string    `gorm:"size:128" json:"-"`
	AllowedDomains string    `gorm:"size:1024" json:"allowedDomains"`
	Status         string    `gorm:"size:16;default:active" json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName gorm table name
func (Shop) TableName() string { return "shops" }

const (
	//ShopActive 正常
	ShopActive = "active"
	//ShopDisabled 停用（驗證一律拒絕）
	ShopDisabled = "disabled"
)

// Staff 客服帳號，密碼 bcrypt 雜湊
type Staff struct {
	ID       int64
	StaffID  string
	ShopID   string
	Email    string
	Password string
	Role     string
}

// StaffQuery 查詢條件（nil 表示不限制該欄位）
type StaffQuery struct {
	ID      *int64
	StaffID *string
	Email   *string
	ShopID  *string
}
