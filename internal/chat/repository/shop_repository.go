package repository

import (
	"context"
	"errors"
	"strings"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg/encrypt"
	errprocess "live_chat_service/pkg/err"

	"gorm.io/gorm"
)

// ShopRepo 商戶註冊表（金鑰驗證、域名白名單）
type ShopRepo interface {
	AutoMigrate() error
	Create(shop *domain.Shop) error
	GetByShopID(shopID string) (*domain.Shop, error)
	// Validate 驗證商戶金鑰與來源域名，通過回 nil。
	// 簽名符合 middlewares.ShopKeyValidator，直接掛進中介層。
	Validate(ctx context.Context, shopID, shopKey, reqDomain string) error
	// 其他 CRUD ...
}

type shopRepo struct {
	db *gorm.DB
}

// NewShopRepo create ShopRepo
func NewShopRepo(db *gorm.DB) ShopRepo {
	return &shopRepo{db: db}
}

// AutoMigrate 依模型建表/補欄位
func (r *shopRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Shop{})
}

func (r *shopRepo) Create(shop *domain.Shop) error {
	return r.db.Create(shop).Error
}

func (r *shopRepo) GetByShopID(shopID string) (*domain.Shop, error) {
	var s domain.Shop
	if err := r.db.Where("shop_id = ?", shopID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 金鑰比對失敗與商戶不存在回同一個錯誤，不讓呼叫端探測商戶是否存在
func (r *shopRepo) Validate(ctx context.Context, shopID, shopKey, reqDomain string) error {
	var s domain.Shop
	if err := r.db.WithContext(ctx).Where("shop_id = ?", shopID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return encrypt.ErrShopKeyMismatch
		}
		return err
	}

	if s.Status != domain.ShopActive {
		return errprocess.Set("shop is disabled: " + shopID)
	}

	if err := encrypt.CheckShopKey(s.ShopKeyHash, shopKey); err != nil {
		return encrypt.ErrShopKeyMismatch
	}

	return checkDomain(s.AllowedDomains, reqDomain)
}

// checkDomain 白名單為空不限來源；比對忽略 scheme 與 port
func checkDomain(allowed, reqDomain string) error {
	if allowed == "" {
		return nil
	}
	host := reqDomain
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	for _, d := range strings.Split(allowed, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if strings.EqualFold(d, host) {
			return nil
		}
		// 允許子網域：*.example.com
		if strings.HasPrefix(d, "*.") && strings.HasSuffix(strings.ToLower(host), strings.ToLower(d[1:])) {
			return nil
		}
	}
	return errprocess.Set("domain not allowed for this shop: " + reqDomain)
}
