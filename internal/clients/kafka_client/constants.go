package kafka_client

const (
	KAFKA_TOPIC_ANALYSIS_RESULTS = "feedback-analysis-results" // one message per analyzed comment plus a run summary
)

const (
	MESSAGE_TYPE_HEADER  = "type"
	MESSAGE_TYPE_RESULT  = "result"
	MESSAGE_TYPE_SUMMARY = "summary"
)

const (
	MAX_RETRIES      = 3
	FLUSH_TIMEOUT_MS = 5000
)
