package kafka_client

type KafkaConfig struct {
	Broker          string
	Topic           string
	TransactionalID string
	GroupID         string
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.Broker == "" {
		c.Broker = "localhost:29092"
	}
	if c.Topic == "" {
		c.Topic = KAFKA_TOPIC_ANALYSIS_RESULTS
	}
	if c.TransactionalID == "" {
		c.TransactionalID = "feedbackflow-producer-1"
	}
	if c.GroupID == "" {
		c.GroupID = "feedbackflow-watch"
	}
	return c
}
