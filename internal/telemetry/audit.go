package telemetry

import (
	"context"
	"log"
	"time"

	"support-service/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes an envelope for every privileged action so that
// message deletions, room clears and forced ticket closures leave a trail
// outside the store itself.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	ActorToken    string       `json:"actor_token"`
	ActorRole     string       `json:"actor_role"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Text     string `json:"text"`
	ClientIP string `json:"client_ip,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, eventType, text, requestID string, actor models.Identity, clientIP string) {
	if e == nil || e.publisher == nil {
		return
	}

	log.Printf("audit emit: event=%s request_id=%s actor=%s text=%q", eventType, requestID, actor.Token, text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		ActorToken:    actor.Token,
		ActorRole:     actor.Role,
		Payload: AuditPayload{
			Text:     text,
			ClientIP: clientIP,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
