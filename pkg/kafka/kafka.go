package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

const (
	AuditTopic = "library.audit"
)

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS"`
	// Timeout bounds a single publish so a slow broker cannot stall a request.
	Timeout time.Duration `envconfig:"KAFKA_TIMEOUT" default:"2s"`
	// Buffer is how many audit events may wait for the publisher before new ones are dropped.
	Buffer int `envconfig:"KAFKA_AUDIT_BUFFER" default:"1024"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Retry.Max = 1
	if cfg.Timeout > 0 {
		defaultCfg.Producer.Timeout = cfg.Timeout
		defaultCfg.Net.DialTimeout = cfg.Timeout
		defaultCfg.Net.WriteTimeout = cfg.Timeout
	}

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}
