package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"sla-engine/internal/logging"
	"sla-engine/internal/models"
	"sla-engine/internal/notify"
	"sla-engine/internal/sla"
)

// snapshotMessage is the wire shape of one per-project task snapshot batch.
type snapshotMessage struct {
	ProjectID string                 `json:"project_id"`
	Tasks     []models.TaskSnapshot  `json:"tasks"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Consumer reads task snapshot batches and drives an evaluation tick for
// each: evaluate SLAs, register due-soon notifications, drain the queue.
type Consumer struct {
	reader *kafka.Reader
	sla    *sla.Service
	notify *notify.Engine
	logger *logging.Logger
	cancel context.CancelFunc
}

func NewConsumer(brokers []string, topic, groupID string, slaSvc *sla.Service, engine *notify.Engine, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{reader: reader, sla: slaSvc, notify: engine, logger: logger}
}

// Start launches the read loop until Close is called.
func (c *Consumer) Start(wg *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}
			c.handleMessage(msg.Value)
		}
	}()
}

func (c *Consumer) handleMessage(value []byte) {
	var snap snapshotMessage
	if err := json.Unmarshal(value, &snap); err != nil {
		c.logger.Errorf("Unmarshal snapshot failed: %v", err)
		return
	}
	if snap.ProjectID == "" {
		c.logger.Errorf("Invalid snapshot: missing project_id")
		return
	}

	now := time.Now()
	health := c.sla.Evaluate(snap.ProjectID, snap.Tasks, now)
	registered := c.notify.RegisterDueSoonNotifications(snap.ProjectID, snap.Tasks, now)
	delivered := c.notify.ProcessQueue(snap.ProjectID, now)

	c.logger.Infof("Tick project=%s tasks=%d breached=%d due_soon=%d delivered=%d",
		snap.ProjectID, len(snap.Tasks), health.Totals.Breached, registered, len(delivered))
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Close kafka reader failed: %v", err)
	}
}
