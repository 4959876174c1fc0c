package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client represents an API consumer allowed to run verifications
type Client struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	APIKey    string             `json:"-" bson:"api_key"`
	QPS       int                `json:"qps" bson:"qps"`       // 每秒请求数限制
	Status    int                `json:"status" bson:"status"` // 0:禁用 1:正常
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// ClientStatus constants
const (
	ClientStatusDisabled = 0 // 禁用
	ClientStatusActive   = 1 // 正常
)

// DefaultClientQPS is used when a client is created without an explicit limit
const DefaultClientQPS = 10

// NewClient creates a new active client
func NewClient(name, apiKey string, qps int) *Client {
	if qps <= 0 {
		qps = DefaultClientQPS
	}
	now := time.Now()
	return &Client{
		Name:      name,
		APIKey:    apiKey,
		QPS:       qps,
		Status:    ClientStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive returns true if the client is active
func (c *Client) IsActive() bool {
	return c.Status == ClientStatusActive
}

// Label is used for metrics and logs
func (c *Client) Label() string {
	if c == nil {
		return "unknown"
	}
	return c.Name
}
