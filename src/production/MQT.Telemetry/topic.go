package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

const dataSuffix = "data"

// ErrInvalidTopic is returned for topics outside <namespace>/<identifier>/data
var ErrInvalidTopic = errors.New("invalid topic")

// ErrInvalidIdentifier is returned for identifiers that cannot form a single topic level
var ErrInvalidIdentifier = errors.New("invalid identifier")

// SubscriptionTopic is the wildcard filter covering every device in namespace
func SubscriptionTopic(namespace string) string {
	return fmt.Sprintf("%s/+/%s", namespace, dataSuffix)
}

// ValidateIdentifier rejects empty identifiers and ones holding a topic
// separator or wildcard.
func ValidateIdentifier(identifier string) error {
	if identifier == "" || strings.ContainsAny(identifier, "/+#") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, identifier)
	}
	return nil
}

// TopicFor returns the data topic a device publishes on
func TopicFor(namespace, identifier string) string {
	return fmt.Sprintf("%s/%s/%s", namespace, identifier, dataSuffix)
}

// IdentifierFromTopic extracts the device identifier from a data topic.
// Shared subscription prefixes ($share/<group>/) are not part of the
// delivered topic and need no handling here.
func IdentifierFromTopic(topic, namespace string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != namespace || parts[2] != dataSuffix || parts[1] == "" {
		return "", fmt.Errorf("%w: %q, expected %s/<identifier>/%s", ErrInvalidTopic, topic, namespace, dataSuffix)
	}
	return parts[1], nil
}
