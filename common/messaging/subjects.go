package messaging

// Subject and stream names for the sentinel message bus.
// Subjects follow the pattern {domain}.{resource}.
const (
	// SubjectSecurityEvents carries every accepted SecurityEvent as JSON.
	SubjectSecurityEvents = "security.events"

	// StreamSecurityEvents is the JetStream stream capturing SubjectSecurityEvents.
	StreamSecurityEvents = "SECURITY_EVENTS"

	// ConsumerStorage is the durable consumer used by the storage writers.
	// Every writer instance binds to it so each message is stored once.
	ConsumerStorage = "sentinel-storage-group"

	// SubjectDeadLetterPrefix prefixes dead-letter subjects, which end in
	// the failure reason, e.g. sentinel.dlq.decode.
	SubjectDeadLetterPrefix = "sentinel.dlq."

	// StreamDeadLetter holds messages the storage consumer gave up on.
	StreamDeadLetter = "SENTINEL_DLQ"
)

// HeaderHostname carries the originating host of a security event. It is
// informational; no partitioning is derived from it.
const HeaderHostname = "Sentinel-Hostname"
