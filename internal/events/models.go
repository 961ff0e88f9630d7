package events

import (
	"database/sql"
	"time"
)

// PageVisit is a single tracked page view. Rows are immutable once written
// except TimeOnPage/ExitPage, which a later page-exit event for the same
// session and page may set exactly once.
type PageVisit struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"size:36;index;not null"`
	IPAddressHash  string `gorm:"size:64;not null"`
	UserAgent      string `gorm:"type:text"`
	PageURL        string `gorm:"size:512;index;not null"`
	Referrer       string `gorm:"size:512"`
	CountryCode    string `gorm:"size:2"`
	DeviceType     string `gorm:"size:16"`
	OSName         string `gorm:"size:64"`
	OSVersion      string `gorm:"size:32"`
	BrowserName    string `gorm:"size:64"`
	BrowserVersion string `gorm:"size:32"`
	ScreenWidth    int
	ScreenHeight   int
	ViewportWidth  int
	ViewportHeight int
	TimeOnPage     sql.NullInt64 // seconds, set by page-exit
	ExitPage       bool
	CreatedAt      time.Time `gorm:"index;not null"`
}

// ClickEvent is a tracked button click. Immutable.
type ClickEvent struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	SessionID     string    `gorm:"size:36;index;not null"`
	ButtonID      string    `gorm:"size:255;index;not null"`
	ButtonText    string    `gorm:"size:255"`
	PageURL       string    `gorm:"size:512"`
	IPAddressHash string    `gorm:"size:64;not null"`
	CreatedAt     time.Time `gorm:"index;not null"`
}

// ClickHeatmap is one recorded click coordinate, written in batches.
type ClickHeatmap struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	SessionID       string `gorm:"size:36;index;not null"`
	PageURL         string `gorm:"size:512;index;not null"`
	XPosition       int    `gorm:"not null"`
	YPosition       int    `gorm:"not null"`
	ViewportWidth   int
	ViewportHeight  int
	ElementSelector string    `gorm:"size:255"`
	ElementText     string    `gorm:"size:255"`
	CreatedAt       time.Time `gorm:"index;not null"`
}

// ConversionEvent is a named funnel step reached by a session. EventOrder is
// the 1-based position of the event within its session, assigned at write
// time inside the same transaction as the insert.
type ConversionEvent struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SessionID  string    `gorm:"size:36;index;not null"`
	EventName  string    `gorm:"size:255;index;not null"`
	EventOrder int       `gorm:"not null"`
	PageURL    string    `gorm:"size:512"`
	EventData  string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index;not null"`
}

// CookieConsent records a session's GDPR consent choice. At most one row per
// session; later writes update in place.
type CookieConsent struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	SessionID     string    `gorm:"size:36;uniqueIndex;not null"`
	ConsentGiven  bool      `gorm:"not null"`
	IPAddressHash string    `gorm:"size:64;not null"`
	CreatedAt     time.Time `gorm:"index;not null"`
}

// ActiveSession is the derived liveness row for a session, upserted on every
// visit and purged once LastSeen falls outside the configured timeout. It is
// a liveness signal, not authoritative history.
type ActiveSession struct {
	SessionID string    `gorm:"primaryKey;size:36"`
	LastSeen  time.Time `gorm:"index;not null"`
	PageURL   string    `gorm:"size:512"`
}
