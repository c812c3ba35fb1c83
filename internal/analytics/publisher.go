package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlinks/internal/messaging"
)

// Publishers holds the typed publish functions for link events.
type Publishers struct {
	LinkCreated messaging.Publish[LinkCreatedEvent]
	LinkClicked messaging.Publish[LinkClickedEvent]
}

// NewPublishers binds each event type to its topic on publisher.
func NewPublishers(publisher message.Publisher, opts ...messaging.PublishOption) *Publishers {
	return &Publishers{
		LinkCreated: messaging.NewPublishFunc[LinkCreatedEvent](publisher, TopicLinkCreated, opts...),
		LinkClicked: messaging.NewPublishFunc[LinkClickedEvent](publisher, TopicLinkClicked, opts...),
	}
}
