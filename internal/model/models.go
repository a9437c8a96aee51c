package model

import (
	"time"

	"gorm.io/gorm"
)

// Host is a target website with a bundle of crawl settings and a parser tag.
type Host struct {
	gorm.Model
	Name            string `gorm:"uniqueIndex;not null"`
	BaseURL         string `gorm:"not null"`
	ParserTag       string
	MinSpacingSec   int  `gorm:"default:1"`
	MaxInFlight     int  `gorm:"default:1"`
	DefaultInterval time.Duration
	Active          bool   `gorm:"default:true"`
	RobotsPolicy    string `gorm:"type:text"`
	UserAgent       string

	Tasks    []CrawlTask       `gorm:"constraint:OnDelete:CASCADE;"`
	Bindings []HostProxyBinding `gorm:"constraint:OnDelete:CASCADE;"`
}

// CrawlTask is one URL to process, tracked through the pipeline state
// machine defined in status.go.
type CrawlTask struct {
	gorm.Model
	HostID uint `gorm:"not null;index:idx_host_status"`
	Host   Host

	URL         string `gorm:"not null"`
	URLFP       string `gorm:"index:idx_host_fp"`
	Status      TaskStatus `gorm:"index:idx_host_status;not null"`
	Priority    int        `gorm:"default:5;index"`
	ScheduledAt time.Time  `gorm:"index"`
	StartedAt   *time.Time
	CompletedAt *time.Time

	RetryCount int `gorm:"default:0"`
	MaxRetries int `gorm:"default:3"`
	LastError  string

	IsRecurring bool
	Interval    time.Duration
	NextRunAt   *time.Time
	RecurCount  int `gorm:"default:0"`
	ParentID    *uint

	BlobRef    string
	HTTPCode   int
	LatencyMs  int64
	ProxyID    *uint
	Proxy      *Proxy

	CreatedBy      string
	IdempotencyKey *string `gorm:"uniqueIndex:idx_idempotency_key"`
}

// TableName pins the table name so callers can rely on it regardless of
// gorm's default pluralization rules changing across versions.
func (CrawlTask) TableName() string { return "crawl_tasks" }

// Proxy is an outbound-identity resource, rotated per host by
// internal/proxyalloc.
type Proxy struct {
	gorm.Model
	Endpoint      string `gorm:"not null"`
	Port          int    `gorm:"not null"`
	Protocol      string `gorm:"not null;default:http"`
	Username      string
	Password      string
	Active        bool `gorm:"default:true"`
	SuccessCt     int64
	FailureCt     int64
	ConsecFailCt  int
	LastUsedAt    *time.Time
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	AvgLatencyMs  float64
	Geo           string
	PerHourCap    int

	Bindings []HostProxyBinding `gorm:"constraint:OnDelete:CASCADE;"`
}

// HostProxyBinding is the many-to-many junction between Host and Proxy,
// carrying its own independent health counters.
type HostProxyBinding struct {
	gorm.Model
	HostID  uint `gorm:"uniqueIndex:idx_host_proxy;not null"`
	ProxyID uint `gorm:"uniqueIndex:idx_host_proxy;not null"`

	Active        bool `gorm:"default:true;index"`
	Priority      int  `gorm:"default:0"`
	LastUsedAt    *time.Time
	SuccessCt     int64
	FailureCt     int64
	ConsecFailCt  int
	AvgLatencyMs  float64
}

func (HostProxyBinding) TableName() string { return "host_proxy_bindings" }
