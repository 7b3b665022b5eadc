package entity

import "slices"

// Digest topics. Guest responses and mirrored log records are listed in
// separate sections of a bot digest.
const (
	TopicResponse = "response"
	TopicLog      = "log"
)

func IsValidTopic(topic string) bool {
	return slices.Contains([]string{TopicResponse, TopicLog}, topic)
}
