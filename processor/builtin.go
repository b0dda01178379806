package processor

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/errortype"
	"github.com/mulesoft/mule-sub047/event"
	"github.com/mulesoft/mule-sub047/handler"
)

// Built-in processor names
const (
	Log            = "log"
	SetVariable    = "set-variable"
	RemoveVariable = "remove-variable"
	SetPayload     = "set-payload"
	RaiseError     = "raise-error"
	Publish        = "publish"
)

var builtins = map[string]Factory{
	Log:            newLog,
	SetVariable:    newSetVariable,
	RemoveVariable: newRemoveVariable,
	SetPayload:     newSetPayload,
	RaiseError:     newRaiseError,
	Publish:        newPublish,
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", errors.ErrInvalidConfig, s)
	}
	return level, nil
}

// newLog logs the event and its error. Params: message, level.
func newLog(params map[string]any, env Env) (handler.Processor, error) {
	level, err := parseLevel(GetString(params, "level", "info"))
	if err != nil {
		return nil, err
	}
	message := GetString(params, "message", "Error handler invoked")

	return handler.ProcessorFunc(func(ctx context.Context, evt *event.Event) (*event.Event, error) {
		attrs := []any{"event_id", evt.ID(), "correlation_id", evt.CorrelationID()}
		if e := evt.Error(); e != nil {
			attrs = append(attrs, "error_type", e.Type.String(), "description", e.Description)
		}
		env.Logger.Log(ctx, level, message, attrs...)
		return evt, nil
	}), nil
}

// newSetVariable stores value under name. Params: name, value.
func newSetVariable(params map[string]any, _ Env) (handler.Processor, error) {
	name, err := RequireString(params, "name")
	if err != nil {
		return nil, err
	}
	value := params["value"]
	return handler.ProcessorFunc(func(_ context.Context, evt *event.Event) (*event.Event, error) {
		return evt.WithVariable(name, value), nil
	}), nil
}

// newRemoveVariable drops a variable. Params: name.
func newRemoveVariable(params map[string]any, _ Env) (handler.Processor, error) {
	name, err := RequireString(params, "name")
	if err != nil {
		return nil, err
	}
	return handler.ProcessorFunc(func(_ context.Context, evt *event.Event) (*event.Event, error) {
		return evt.WithoutVariable(name), nil
	}), nil
}

// newSetPayload replaces the payload. Params: value.
func newSetPayload(params map[string]any, _ Env) (handler.Processor, error) {
	if !HasKey(params, "value") {
		return nil, fmt.Errorf("%w: value is required", errors.ErrMissingConfig)
	}
	value := params["value"]
	return handler.ProcessorFunc(func(_ context.Context, evt *event.Event) (*event.Event, error) {
		return evt.WithPayload(value), nil
	}), nil
}

// newRaiseError fails with a typed error. Params: type, description.
func newRaiseError(params map[string]any, env Env) (handler.Processor, error) {
	typeName, err := RequireString(params, "type")
	if err != nil {
		return nil, err
	}
	id, err := component.ParseIdentifier(typeName)
	if err != nil {
		return nil, err
	}
	t, ok := env.Repository.LookupErrorType(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownErrorType, id)
	}
	description := GetString(params, "description", "raised by "+strings.ToLower(t.Identifier()))

	return handler.ProcessorFunc(func(_ context.Context, evt *event.Event) (*event.Event, error) {
		return evt, errortype.NewTypedError(t, stderrors.New(description))
	}), nil
}

type published struct {
	EventID       string         `json:"event_id"`
	CorrelationID string         `json:"correlation_id"`
	ErrorType     string         `json:"error_type,omitempty"`
	Description   string         `json:"description,omitempty"`
	Component     string         `json:"component,omitempty"`
	Payload       any            `json:"payload,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// newPublish sends the failed event to a NATS subject, e.g. a dead letter
// subject. Params: subject.
func newPublish(params map[string]any, env Env) (handler.Processor, error) {
	subject, err := RequireString(params, "subject")
	if err != nil {
		return nil, err
	}
	if env.Publisher == nil {
		return nil, fmt.Errorf("%w: publish needs a NATS connection", errors.ErrMissingConfig)
	}

	return handler.ProcessorFunc(func(ctx context.Context, evt *event.Event) (*event.Event, error) {
		msg := published{
			EventID:       evt.ID(),
			CorrelationID: evt.CorrelationID(),
			Payload:       evt.Payload(),
			Variables:     evt.Variables(),
		}
		if e := evt.Error(); e != nil {
			msg.ErrorType = e.Type.String()
			msg.Description = e.Description
			if !e.FailingComponent.IsZero() {
				msg.Component = e.FailingComponent.String()
			}
		}

		data, err := json.Marshal(msg)
		if err != nil {
			return evt, errors.Wrap(fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "Publish", "Process", "encode event")
		}
		if err := env.Publisher.Publish(ctx, subject, data); err != nil {
			return evt, errors.WrapTransient(err, "Publish", "Process", fmt.Sprintf("publish to %s", subject))
		}
		return evt, nil
	}), nil
}
