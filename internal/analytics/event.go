package analytics

import "time"

const (
	TopicLinkCreated = "link.created"
	TopicLinkClicked = "link.clicked"
)

// LinkCreatedEvent is emitted when a new short link is stored.
type LinkCreatedEvent struct {
	Code      string    `json:"code"      cbor:"code"`
	LongURL   string    `json:"longUrl"   cbor:"longUrl"`
	OwnerID   string    `json:"userId"    cbor:"userId"`
	Strategy  string    `json:"strategy"  cbor:"strategy"`
	CreatedAt time.Time `json:"createdAt" cbor:"createdAt"`
	ClientIP  string    `json:"clientIp"  cbor:"clientIp"`
	UserAgent string    `json:"userAgent" cbor:"userAgent"`
}

// LinkClickedEvent is emitted when a short link is followed.
type LinkClickedEvent struct {
	Code      string    `json:"code"               cbor:"code"`
	ClickedAt time.Time `json:"clickedAt"          cbor:"clickedAt"`
	ClientIP  string    `json:"clientIp"           cbor:"clientIp"`
	UserAgent string    `json:"userAgent"          cbor:"userAgent"`
	Referrer  string    `json:"referrer,omitempty" cbor:"referrer,omitempty"`
	Country   string    `json:"country,omitempty"  cbor:"country,omitempty"`
}
