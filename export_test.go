package ledgerx

import "github.com/segmentio/kafka-go"

func KafkaWriter(p *KafkaPublisher) *kafka.Writer {
	return p.writer
}
