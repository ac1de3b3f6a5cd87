package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wctitle/titlebook/libs/config"
	"github.com/wctitle/titlebook/libs/db"
	"github.com/wctitle/titlebook/libs/httpx"
	"github.com/wctitle/titlebook/libs/kafkax"
	otelx "github.com/wctitle/titlebook/libs/otel"
	"github.com/wctitle/titlebook/libs/runtime"
	"github.com/wctitle/titlebook/services/calendar-mirror-service/internal/consumer"
	"github.com/wctitle/titlebook/services/calendar-mirror-service/internal/inbox"
	"github.com/wctitle/titlebook/services/calendar-mirror-service/internal/mirror"
	"github.com/wctitle/titlebook/services/calendar-mirror-service/internal/outbox"
)

type bookingEvent struct {
	AppointmentID string `json:"appointment_id"`
	TypeID        string `json:"type_id"`
	CalendarID    string `json:"calendar_id"`
	CustomerName  string `json:"customer_name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func main() {
	service := config.String("SERVICE_NAME", "calendar-mirror-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	client := mirror.NewClient(
		config.String("CALENDAR_API_URL", ""),
		config.String("CALENDAR_API_TOKEN", ""),
	)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, brokers)
	go publisher.Run(ctx)

	handle := func(msgCtx context.Context, msg kafka.Message) error {
		var evt bookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.AppointmentID == "" || evt.CalendarID == "" {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}

		mirrorErr := applyToCalendar(msgCtx, client, msg.Topic, evt)
		return recordOutcome(msgCtx, outboxRepo, logger, msg.Topic, evt, mirrorErr)
	}

	for _, topic := range []string{
		"booking.appointment.confirmed.v1",
		"booking.appointment.cancelled.v1",
		"booking.appointment.rescheduled.v1",
	} {
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "calendar-mirror-service"),
			Topic:   topic,
		}, handle)
		go c.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "calendar-mirror")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func applyToCalendar(ctx context.Context, client *mirror.Client, topic string, evt bookingEvent) error {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if strings.HasSuffix(topic, ".cancelled.v1") {
		return client.Remove(reqCtx, evt.CalendarID, evt.AppointmentID)
	}

	start, err := time.Parse(time.RFC3339, evt.StartTime)
	if err != nil {
		return err
	}
	end, err := time.Parse(time.RFC3339, evt.EndTime)
	if err != nil {
		return err
	}
	return client.Upsert(reqCtx, mirror.Event{
		AppointmentID: evt.AppointmentID,
		CalendarID:    evt.CalendarID,
		Title:         evt.TypeID + " - " + evt.CustomerName,
		Start:         start,
		End:           end,
	})
}

func recordOutcome(ctx context.Context, outboxRepo *outbox.Repository, logger *slog.Logger, topic string, evt bookingEvent, mirrorErr error) error {
	eventType := "calendar.mirror.synced.v1"
	payload := map[string]any{
		"appointment_id": evt.AppointmentID,
		"calendar_id":    evt.CalendarID,
		"source_event":   topic,
	}
	if mirrorErr != nil {
		eventType = "calendar.mirror.failed.v1"
		payload["error"] = mirrorErr.Error()
		logger.Error("calendar mirror failed", "appointment_id", evt.AppointmentID, "err", mirrorErr)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return outboxRepo.InsertStandalone(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   evt.AppointmentID,
		EventType:     eventType,
		Payload:       raw,
	})
}
