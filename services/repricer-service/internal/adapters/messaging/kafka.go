package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer *kafka.Producer
	logger   interfaces.LoggerPort
	done     chan struct{}
}

// NewKafkaMessaging создает producer и запускает чтение отчетов о доставке
func NewKafkaMessaging(brokers []string, clientID string, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(brokers, ","),
		"client.id":          clientID,
		"acks":               "all",
		"retries":            5,
		"retry.backoff.ms":   500,
		"compression.type":   "snappy",
		"linger.ms":          10,
		"message.max.bytes":  1000000,
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	k := &KafkaMessaging{
		producer: producer,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go k.watchEvents()

	return k, nil
}

// watchEvents логирует ошибки доставки сообщений, отправленных без ожидания
func (k *KafkaMessaging) watchEvents() {
	defer close(k.done)
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				k.logger.Error("Ошибка доставки сообщения в Kafka",
					interfaces.LogField{Key: "topic", Value: *ev.TopicPartition.Topic},
					interfaces.LogField{Key: "error", Value: ev.TopicPartition.Error.Error()},
				)
			}
		case kafka.Error:
			k.logger.Warn("Ошибка Kafka producer",
				interfaces.LogField{Key: "error", Value: ev.Error()})
		}
	}
}

func buildMessage(topic, key string, message []byte) *kafka.Message {
	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(uuid.New().String())},
			{Key: "timestamp", Value: []byte(strconv.FormatInt(time.Now().UnixNano(), 10))},
		},
	}
}

// Publish ставит сообщение в очередь producer-а. Ошибки доставки логируются асинхронно
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, key string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.producer.Produce(buildMessage(topic, key, message), nil)
}

// Close дожидается отправки буфера (до 15 секунд) и закрывает producer
func (k *KafkaMessaging) Close() error {
	if left := k.producer.Flush(15 * 1000); left > 0 {
		k.logger.Warn("Не все сообщения отправлены в Kafka",
			interfaces.LogField{Key: "left", Value: left})
	}
	k.producer.Close()
	<-k.done
	return nil
}
