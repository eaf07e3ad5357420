// Package ids generates the prefixed opaque identifiers used for
// conversations and messages.
package ids

import "github.com/lithammer/shortuuid/v4"

const (
	ConversationPrefix = "conv_"
	MessagePrefix      = "msg_"
)

func NewConversationID() string {
	return ConversationPrefix + shortuuid.New()
}

func NewMessageID() string {
	return MessagePrefix + shortuuid.New()
}
