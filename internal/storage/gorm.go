package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stockalert/internal/config"
	"stockalert/internal/domain"
	"stockalert/internal/logging"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Open connects to MySQL and optionally migrates alerting tables.
// Params: database config and base logger for gorm warnings.
// Returns: gorm handle or connection/migration error.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logging.GormLogger(logger, time.Duration(cfg.SlowThresholdMS)*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetimeSec > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSec) * time.Second)
	}
	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates alerting tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ProductRecord{}, &NotificationRecord{}, &SettingsRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close closes underlying SQL pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database reachability.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GormInventory reads products from MySQL.
type GormInventory struct {
	db *gorm.DB
}

// NewGormInventory creates MySQL product source.
func NewGormInventory(db *gorm.DB) *GormInventory {
	return &GormInventory{db: db}
}

// ProductsFor selects products matching the kind's applicability predicate.
// Params: condition kind.
// Returns: candidate products ordered by ID or query error.
func (s *GormInventory) ProductsFor(ctx context.Context, kind domain.ConditionKind) ([]domain.Product, error) {
	query := s.db.WithContext(ctx).Model(&ProductRecord{})
	switch kind {
	case domain.KindLowStock:
		query = query.Where("quantity > 0 AND quantity < low_stock_threshold")
	case domain.KindOutOfStock:
		query = query.Where("quantity = 0")
	case domain.KindExpiry:
		query = query.Where("is_perishable = ? AND expiry_date IS NOT NULL", true)
	case domain.KindReorder:
		query = query.Where("auto_reorder_enabled = ? AND reorder_point IS NOT NULL AND quantity <= reorder_point", true)
	default:
		return nil, fmt.Errorf("unknown condition kind %q", kind)
	}

	var rows []ProductRecord
	if err := query.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select %s products: %w", kind, err)
	}
	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.ToDomain())
	}
	return products, nil
}

// MarkAlerted refreshes last_stock_alert_at or last_expiry_alert_at.
// Params: product ID, condition kind, and alert time.
// Returns: update error.
func (s *GormInventory) MarkAlerted(ctx context.Context, productID string, kind domain.ConditionKind, at time.Time) error {
	column := "last_stock_alert_at"
	if kind == domain.KindExpiry {
		column = "last_expiry_alert_at"
	}
	err := s.db.WithContext(ctx).
		Model(&ProductRecord{}).
		Where("id = ?", productID).
		UpdateColumn(column, at.UTC()).Error
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return nil
}

// Upsert inserts or replaces product rows; used for seeding and tests.
func (s *GormInventory) Upsert(ctx context.Context, products ...domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	rows := make([]ProductRecord, 0, len(products))
	for _, product := range products {
		rows = append(rows, productRecordFrom(product))
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	return nil
}

// GormNotifications persists notifications in MySQL.
type GormNotifications struct {
	db *gorm.DB
}

// NewGormNotifications creates MySQL notification store.
func NewGormNotifications(db *gorm.DB) *GormNotifications {
	return &GormNotifications{db: db}
}

// Create inserts notification row.
func (s *GormNotifications) Create(ctx context.Context, notification domain.Notification) error {
	row, err := notificationRecordFrom(notification)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// UpdateDelivery stores per-channel delivery outcome.
func (s *GormNotifications) UpdateDelivery(ctx context.Context, id string, result domain.DeliveryResult) error {
	err := s.db.WithContext(ctx).
		Model(&NotificationRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"email_sent": result.EmailSent, "push_sent": result.PushSent}).Error
	if err != nil {
		return fmt.Errorf("update delivery flags: %w", err)
	}
	return nil
}

// MarkRead sets is_read for one notification.
func (s *GormNotifications) MarkRead(ctx context.Context, id string) error {
	return s.updateFlag(ctx, id, "is_read")
}

// Dismiss sets is_dismissed for one notification.
func (s *GormNotifications) Dismiss(ctx context.Context, id string) error {
	return s.updateFlag(ctx, id, "is_dismissed")
}

// updateFlag sets boolean column and distinguishes missing rows from no-op updates.
func (s *GormNotifications) updateFlag(ctx context.Context, id, column string) error {
	result := s.db.WithContext(ctx).
		Model(&NotificationRecord{}).
		Where("id = ?", id).
		Update(column, true)
	if result.Error != nil {
		return fmt.Errorf("update %s: %w", column, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return s.ensureExists(ctx, id)
}

func (s *GormNotifications) ensureExists(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&NotificationRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("count notification: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification as read.
// Params: none.
// Returns: number of updated rows.
func (s *GormNotifications) MarkAllRead(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&NotificationRecord{}).
		Where("is_read = ?", false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes one notification.
func (s *GormNotifications) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&NotificationRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns newest notifications matching filter and the unread count.
// Params: listing filter.
// Returns: notifications, unread (and not dismissed) count, or query error.
func (s *GormNotifications) List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, int64, error) {
	query := s.db.WithContext(ctx).Model(&NotificationRecord{})
	if filter.Read != nil {
		query = query.Where("is_read = ?", *filter.Read)
	}
	if filter.Kind != "" {
		query = query.Where("type = ?", string(filter.Kind))
	}
	if filter.Severity != "" {
		query = query.Where("priority = ?", string(filter.Severity))
	}
	if !filter.IncludeDismissed {
		query = query.Where("is_dismissed = ?", false)
	}

	var rows []NotificationRecord
	if err := query.Order("created_at DESC").Limit(filter.EffectiveLimit()).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var unread int64
	err := s.db.WithContext(ctx).
		Model(&NotificationRecord{}).
		Where("is_read = ? AND is_dismissed = ?", false, false).
		Count(&unread).Error
	if err != nil {
		return nil, 0, fmt.Errorf("count unread notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, unread, nil
}

// LatestFor returns creation time of newest notification for pair.
func (s *GormNotifications) LatestFor(ctx context.Context, productID string, kind domain.ConditionKind) (time.Time, bool, error) {
	var rows []NotificationRecord
	err := s.db.WithContext(ctx).
		Select("created_at").
		Where("product_id = ? AND type = ?", productID, string(kind)).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest notification: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].CreatedAt.UTC(), true, nil
}

// GormSettings reads and writes the alert_settings row.
type GormSettings struct {
	db *gorm.DB
}

// NewGormSettings creates MySQL settings store.
func NewGormSettings(db *gorm.DB) *GormSettings {
	return &GormSettings{db: db}
}

// Load returns settings or ErrNotFound when the row is absent.
func (s *GormSettings) Load(ctx context.Context) (domain.Settings, error) {
	var row SettingsRecord
	err := s.db.WithContext(ctx).Where("id = ?", settingsRowID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Settings{}, ErrNotFound
		}
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return row.ToDomain(), nil
}

// Save replaces the settings row.
func (s *GormSettings) Save(ctx context.Context, settings domain.Settings) error {
	row := settingsRecordFrom(settings)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
