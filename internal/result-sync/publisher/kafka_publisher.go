package publisher

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/prediction-pool/internal/shared/kafka"
	"github.com/radieske/prediction-pool/pkg/contracts/events"
)

// KafkaPublisher encapsula o writer Kafka e o logger.
type KafkaPublisher struct {
	writer sharedkafka.MessageWriter
	log    *zap.Logger
}

// NewKafkaPublisher cria um publisher para um tópico Kafka.
// Em ambiente local/dev garante a existência do tópico antes de criar o writer.
func NewKafkaPublisher(brokers []string, topic string, env string, log *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}

	if env == "local" || env == "dev" || os.Getenv("APP_ENV") == "local" {
		if err := ensureTopic(brokers[0], topic, log); err != nil {
			log.Warn("failed to ensure kafka topic", zap.String("topic", topic), zap.Error(err))
		}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // mesma partida -> mesma partição
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}

	return NewWithWriter(writer, log), nil
}

// NewWithWriter usa um writer já construído (testes injetam um fake)
func NewWithWriter(w sharedkafka.MessageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log}
}

// ensureTopic cria o tópico via controller do cluster (single-broker em dev)
func ensureTopic(broker, topic string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}

	cconn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	if err == nil {
		log.Info("kafka topic created", zap.String("topic", topic))
	}
	return nil
}

// PublishMatchFinalized envia o evento com a partida como chave
func (p *KafkaPublisher) PublishMatchFinalized(ctx context.Context, e events.MatchFinalized) error {
	key := strconv.FormatInt(e.MatchID, 10)
	if err := sharedkafka.WriteJSON(ctx, p.writer, key, e); err != nil {
		p.log.Error("failed to publish match finalized", zap.Int64("match_id", e.MatchID), zap.Error(err))
		return err
	}
	p.log.Debug("published match finalized", zap.Int64("match_id", e.MatchID))
	return nil
}

// PublishScoringCompleted envia o resumo da passada de pontuação
func (p *KafkaPublisher) PublishScoringCompleted(ctx context.Context, e events.ScoringCompleted) error {
	if err := sharedkafka.WriteJSON(ctx, p.writer, "scoring", e); err != nil {
		p.log.Error("failed to publish scoring completed", zap.Error(err))
		return err
	}
	return nil
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
