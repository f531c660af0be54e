package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Astemirdum/library-loans/library/config"
	"github.com/Astemirdum/library-loans/library/internal/audit"
	"github.com/Astemirdum/library-loans/library/internal/handler"
	"github.com/Astemirdum/library-loans/library/internal/repository"
	"github.com/Astemirdum/library-loans/library/internal/server"
	"github.com/Astemirdum/library-loans/library/internal/service"
	"github.com/Astemirdum/library-loans/library/migrations"
	cb "github.com/Astemirdum/library-loans/pkg/circuit_breaker"
	"github.com/Astemirdum/library-loans/pkg/kafka"
	"github.com/Astemirdum/library-loans/pkg/logger"
	"github.com/Astemirdum/library-loans/pkg/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}

	auditSink, closeAudit := newAuditSink(cfg, log)
	svc := service.NewService(repo, auditSink, service.Options{
		LoanPeriod:    cfg.Lifecycle.LoanPeriod,
		FinePerDay:    cfg.Lifecycle.FinePerDay,
		LegacyOverdue: cfg.Lifecycle.LegacyOverdue,
	}, log)
	if cfg.Lifecycle.LegacyOverdue {
		log.Warn("legacy overdue fines enabled: closed loans may be fined again and books stay borrowed")
	}

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gCtx.Done()
		log.Debug("Graceful shutdown")

		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})
	if err = g.Wait(); err != nil {
		log.Error("server", zap.Error(err))
	}

	closeAudit()
	if err = db.Close(); err != nil {
		log.Error("db close", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}

// newAuditSink always writes the audit log and also publishes to Kafka when brokers are configured.
// An unreachable broker degrades to log-only auditing.
func newAuditSink(cfg *config.Config, log *zap.Logger) (audit.Sink, func()) {
	logSink := audit.NewLogSink(log)
	if len(cfg.Kafka.Addrs) == 0 {
		return logSink, func() {}
	}
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		log.Warn("kafka.NewProducer, audit goes to log only", zap.Error(err))
		return logSink, func() {}
	}
	kafkaSink := audit.NewKafkaSink(producer, kafka.AuditTopic, cb.NewFromConfig(cfg.CircuitBreaker), cfg.Kafka.Buffer, log)
	return audit.Tee(logSink, kafkaSink), func() {
		if err := kafkaSink.Close(); err != nil {
			log.Error("kafka producer close", zap.Error(err))
		}
	}
}
