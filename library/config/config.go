package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	cb "github.com/Astemirdum/library-loans/pkg/circuit_breaker"
	"github.com/Astemirdum/library-loans/pkg/kafka"
	"github.com/Astemirdum/library-loans/pkg/logger"
	"github.com/Astemirdum/library-loans/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
)

type HTTPServer struct {
	Host         string        `envconfig:"LIBRARY_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `envconfig:"LIBRARY_HTTP_PORT" default:"8060"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE" default:"10s"`
}

// Lifecycle tunes the loan rules.
type Lifecycle struct {
	LoanPeriod time.Duration `envconfig:"LIBRARY_LOAN_PERIOD" default:"720h"`
	FinePerDay float64       `envconfig:"LIBRARY_FINE_PER_DAY" default:"0.5"`
	// LegacyOverdue accepts overdue fines on closed loans and leaves the book status as is.
	LegacyOverdue bool `envconfig:"LIBRARY_LEGACY_OVERDUE" default:"false"`
}

type Config struct {
	Server         HTTPServer
	Database       postgres.DB
	Kafka          kafka.Config
	CircuitBreaker cb.Config
	Lifecycle      Lifecycle
	Log            logger.Log
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment once; options override what was read.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		c, err := load(ops...)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = c
		printConfig(cfg)
	})

	return cfg
}

func load(ops ...Option) (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}
	for _, op := range ops {
		op(&config)
	}
	return &config, nil
}

func printConfig(cfg *Config) {
	safe := *cfg
	safe.Database.Password = "***"
	jscfg, _ := json.MarshalIndent(safe, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
