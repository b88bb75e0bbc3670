package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stockalert/internal/domain"

	"gorm.io/datatypes"
)

// ProductRecord maps the products table.
type ProductRecord struct {
	ID                 string     `gorm:"column:id;type:varchar(64);primaryKey"`
	Name               string     `gorm:"column:name;type:varchar(255);not null"`
	SKU                string     `gorm:"column:sku;type:varchar(64);index"`
	Category           string     `gorm:"column:category;type:varchar(64)"`
	Quantity           int        `gorm:"column:quantity;not null;index"`
	LowStockThreshold  int        `gorm:"column:low_stock_threshold;not null"`
	IsPerishable       bool       `gorm:"column:is_perishable;not null"`
	ExpiryDate         *time.Time `gorm:"column:expiry_date;index"`
	ExpiryAlertDays    int        `gorm:"column:expiry_alert_days;not null"`
	AutoReorderEnabled bool       `gorm:"column:auto_reorder_enabled;not null"`
	ReorderPoint       *int       `gorm:"column:reorder_point"`
	ReorderQuantity    *int       `gorm:"column:reorder_quantity"`
	EmailNotifications bool       `gorm:"column:email_notifications;not null"`
	PushNotifications  bool       `gorm:"column:push_notifications;not null"`
	LastStockAlertAt   *time.Time `gorm:"column:last_stock_alert_at"`
	LastExpiryAlertAt  *time.Time `gorm:"column:last_expiry_alert_at"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (ProductRecord) TableName() string { return "products" }

// ToDomain converts row into evaluator input.
func (r ProductRecord) ToDomain() domain.Product {
	return domain.Product{
		ID:                        r.ID,
		Name:                      r.Name,
		SKU:                       r.SKU,
		Category:                  r.Category,
		Quantity:                  r.Quantity,
		LowStockThreshold:         r.LowStockThreshold,
		IsPerishable:              r.IsPerishable,
		ExpiryDate:                r.ExpiryDate,
		ExpiryAlertDays:           r.ExpiryAlertDays,
		AutoReorderEnabled:        r.AutoReorderEnabled,
		ReorderPoint:              r.ReorderPoint,
		ReorderQuantity:           r.ReorderQuantity,
		EmailNotificationsEnabled: r.EmailNotifications,
		PushNotificationsEnabled:  r.PushNotifications,
		LastStockAlertAt:          r.LastStockAlertAt,
		LastExpiryAlertAt:         r.LastExpiryAlertAt,
	}
}

// productRecordFrom converts domain product into row for seeding.
func productRecordFrom(p domain.Product) ProductRecord {
	return ProductRecord{
		ID:                 p.ID,
		Name:               p.Name,
		SKU:                p.SKU,
		Category:           p.Category,
		Quantity:           p.Quantity,
		LowStockThreshold:  p.LowStockThreshold,
		IsPerishable:       p.IsPerishable,
		ExpiryDate:         p.ExpiryDate,
		ExpiryAlertDays:    p.EffectiveExpiryAlertDays(),
		AutoReorderEnabled: p.AutoReorderEnabled,
		ReorderPoint:       p.ReorderPoint,
		ReorderQuantity:    p.ReorderQuantity,
		EmailNotifications: p.EmailNotificationsEnabled,
		PushNotifications:  p.PushNotificationsEnabled,
		LastStockAlertAt:   p.LastStockAlertAt,
		LastExpiryAlertAt:  p.LastExpiryAlertAt,
	}
}

// NotificationRecord maps the notifications table.
type NotificationRecord struct {
	ID          string         `gorm:"column:id;type:char(36);primaryKey"`
	ProductID   string         `gorm:"column:product_id;type:varchar(64);not null;index:idx_notifications_product_kind,priority:1"`
	Type        string         `gorm:"column:type;type:varchar(32);not null;index:idx_notifications_product_kind,priority:2"`
	Title       string         `gorm:"column:title;type:varchar(255);not null"`
	Message     string         `gorm:"column:message;type:text;not null"`
	Priority    string         `gorm:"column:priority;type:varchar(16);not null"`
	IsRead      bool           `gorm:"column:is_read;not null;index"`
	IsDismissed bool           `gorm:"column:is_dismissed;not null"`
	EmailSent   bool           `gorm:"column:email_sent;not null"`
	PushSent    bool           `gorm:"column:push_sent;not null"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:json"`
	CreatedAt   time.Time      `gorm:"column:created_at;index:idx_notifications_product_kind,priority:3"`
}

func (NotificationRecord) TableName() string { return "notifications" }

// notificationRecordFrom converts domain notification into row.
func notificationRecordFrom(n domain.Notification) (NotificationRecord, error) {
	var metadata datatypes.JSON
	if len(n.Metadata) > 0 {
		body, err := json.Marshal(n.Metadata)
		if err != nil {
			return NotificationRecord{}, fmt.Errorf("encode notification metadata: %w", err)
		}
		metadata = datatypes.JSON(body)
	}
	return NotificationRecord{
		ID:          n.ID,
		ProductID:   n.ProductID,
		Type:        string(n.Kind),
		Title:       n.Title,
		Message:     n.Message,
		Priority:    string(n.Severity),
		IsRead:      n.Read,
		IsDismissed: n.Dismissed,
		EmailSent:   n.EmailSent,
		PushSent:    n.PushSent,
		Metadata:    metadata,
		CreatedAt:   n.CreatedAt,
	}, nil
}

// ToDomain converts row into API notification.
func (r NotificationRecord) ToDomain() domain.Notification {
	var metadata map[string]any
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &metadata)
	}
	return domain.Notification{
		ID:        r.ID,
		Kind:      domain.ConditionKind(r.Type),
		ProductID: r.ProductID,
		Title:     r.Title,
		Message:   r.Message,
		Severity:  domain.Severity(r.Priority),
		Read:      r.IsRead,
		Dismissed: r.IsDismissed,
		EmailSent: r.EmailSent,
		PushSent:  r.PushSent,
		Metadata:  metadata,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// settingsRowID pins the single settings row.
const settingsRowID = 1

// SettingsRecord maps the single-row alert_settings table.
type SettingsRecord struct {
	ID              uint      `gorm:"column:id;primaryKey"`
	EmailEnabled    bool      `gorm:"column:email_enabled;not null"`
	EmailAddress    string    `gorm:"column:email_address;type:varchar(1024)"`
	EmailLowStock   bool      `gorm:"column:email_low_stock;not null"`
	EmailOutOfStock bool      `gorm:"column:email_out_of_stock;not null"`
	EmailExpiry     bool      `gorm:"column:email_expiry;not null"`
	EmailReorder    bool      `gorm:"column:email_reorder;not null"`
	PushEnabled     bool      `gorm:"column:push_enabled;not null"`
	PushLowStock    bool      `gorm:"column:push_low_stock;not null"`
	PushOutOfStock  bool      `gorm:"column:push_out_of_stock;not null"`
	PushExpiry      bool      `gorm:"column:push_expiry;not null"`
	PushReorder     bool      `gorm:"column:push_reorder;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (SettingsRecord) TableName() string { return "alert_settings" }

// ToDomain converts row into settings; email_address holds comma separated recipients.
func (r SettingsRecord) ToDomain() domain.Settings {
	return domain.Settings{
		Email: domain.EmailSettings{
			ChannelSettings: domain.ChannelSettings{
				Enabled:    r.EmailEnabled,
				LowStock:   r.EmailLowStock,
				OutOfStock: r.EmailOutOfStock,
				Expiry:     r.EmailExpiry,
				Reorder:    r.EmailReorder,
			},
			Addresses: SplitAddresses(r.EmailAddress),
		},
		Push: domain.PushSettings{
			ChannelSettings: domain.ChannelSettings{
				Enabled:    r.PushEnabled,
				LowStock:   r.PushLowStock,
				OutOfStock: r.PushOutOfStock,
				Expiry:     r.PushExpiry,
				Reorder:    r.PushReorder,
			},
		},
	}
}

func settingsRecordFrom(s domain.Settings) SettingsRecord {
	return SettingsRecord{
		ID:              settingsRowID,
		EmailEnabled:    s.Email.Enabled,
		EmailAddress:    strings.Join(SplitAddresses(strings.Join(s.Email.Addresses, ",")), ","),
		EmailLowStock:   s.Email.LowStock,
		EmailOutOfStock: s.Email.OutOfStock,
		EmailExpiry:     s.Email.Expiry,
		EmailReorder:    s.Email.Reorder,
		PushEnabled:     s.Push.Enabled,
		PushLowStock:    s.Push.LowStock,
		PushOutOfStock:  s.Push.OutOfStock,
		PushExpiry:      s.Push.Expiry,
		PushReorder:     s.Push.Reorder,
	}
}

// SplitAddresses parses comma or semicolon separated recipients, dropping blanks.
func SplitAddresses(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
