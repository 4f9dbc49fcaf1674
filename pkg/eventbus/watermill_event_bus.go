package eventbus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/appforge/flowcanvas/pkg/events"
	"github.com/appforge/flowcanvas/pkg/otelhelper"
)

const tracerName = "flowcanvas.eventbus"

var errUnknownEventType = errors.New("unknown editor event type")

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
	tracer        trace.Tracer
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
		tracer:        otel.Tracer(tracerName),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	_, span := otelhelper.StartSpan(ctx, eb.tracer, "eventbus.publish",
		attribute.String(otelhelper.OperationKey, "publish"),
		attribute.String(otelhelper.SessionIDKey, key),
		attribute.String("event_type", string(event.GetType())),
	)
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	span.SetAttributes(attribute.String(otelhelper.EventIDKey, msg.UUID))

	if err := eb.publisher.Publish(events.Topic, msg); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eb.consume(ctx, msg)
		}
	}()

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	handler, exists := eb.subscriptions[eventType]
	if !exists {
		msg.Ack()

		return
	}

	ctx, span := otelhelper.StartSpan(ctx, eb.tracer, "eventbus.consume",
		attribute.String(otelhelper.OperationKey, "consume"),
		attribute.String(otelhelper.EventIDKey, msg.UUID),
		attribute.String(otelhelper.SessionIDKey, msg.Metadata.Get(events.EventMetadataKey)),
		attribute.String("event_type", string(eventType)),
	)
	defer span.End()

	event := newEventPayload(eventType)
	if event == nil {
		otelhelper.SetError(span, errUnknownEventType)
		msg.Nack()

		return
	}

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		otelhelper.SetError(span, err)
		msg.Nack()

		return
	}

	if err := handler(ctx, event); err != nil {
		otelhelper.SetError(span, err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func newEventPayload(eventType events.EventType) any {
	switch eventType {
	case events.StepInsertedEvent:
		return &events.StepInserted{}
	case events.StepUpdatedEvent:
		return &events.StepUpdated{}
	case events.StepRemovedEvent:
		return &events.StepRemoved{}
	case events.StepDuplicatedEvent:
		return &events.StepDuplicated{}
	case events.StepReroutedEvent:
		return &events.StepRerouted{}
	case events.TriggerUpdatedEvent:
		return &events.TriggerUpdated{}
	case events.NodesMovedEvent:
		return &events.NodesMoved{}
	case events.CheckpointEvent:
		return &events.CheckpointRecorded{}
	case events.UndoAppliedEvent:
		return &events.UndoApplied{}
	case events.RedoAppliedEvent:
		return &events.RedoApplied{}
	case events.DraftSavedEvent:
		return &events.DraftSaved{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
