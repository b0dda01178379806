package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/event"
	"github.com/mulesoft/mule-sub047/handler"
	"github.com/mulesoft/mule-sub047/metric"
	"github.com/mulesoft/mule-sub047/processor"
)

const flowsYAML = `
error_types:
  - id: APP:BACKEND_DOWN
    parent: CONNECTIVITY

error_handlers:
  dead-letter:
    - kind: on-error-propagate
      name: dlq
      processors:
        - name: publish
          params: {subject: orders.dlq}

default_error_handler: dead-letter

flows:
  orders:
    mappings:
      - {component: processors/0, source: CONNECTIVITY, target: APP:BACKEND_DOWN}
    handlers:
      - kind: on-error-continue
        type: APP:BACKEND_DOWN
        processors:
          - name: set-payload
            params: {value: queued}
          - name: tag
            params: {name: recovered, value: true}
  billing:
    error_handler: dead-letter
  audit: {}
`

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	messages [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.messages = append(p.messages, data)
	return nil
}

func testBuildDeps(pub *recordingPublisher) BuildDeps {
	return BuildDeps{
		Publisher:       pub,
		MetricsRegistry: metric.NewMetricsRegistry(),
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Processors: map[string]processor.Factory{
			"tag": func(params map[string]any, _ processor.Env) (handler.Processor, error) {
				name, err := processor.RequireString(params, "name")
				if err != nil {
					return nil, err
				}
				value := params["value"]
				return handler.ProcessorFunc(func(_ context.Context, evt *event.Event) (*event.Event, error) {
					return evt.WithVariable(name, value), nil
				}), nil
			},
		},
	}
}

func loadFlows(t *testing.T, yamlDoc string, deps BuildDeps) *Flows {
	t.Helper()
	cfg, err := LoadFile(writeFile(t, t.TempDir(), "flows.yaml", yamlDoc))
	require.NoError(t, err)

	flows, err := Build(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = flows.Dispose() })
	return flows
}

func TestBuild_Flows(t *testing.T) {
	pub := &recordingPublisher{}
	flows := loadFlows(t, flowsYAML, testBuildDeps(pub))

	assert.Equal(t, []string{"audit", "billing", "orders"}, flows.Names())
	assert.Equal(t, 2, flows.Global.References("dead-letter"))

	backendDown, ok := flows.Repository.LookupErrorType(component.MustParseIdentifier("APP:BACKEND_DOWN"))
	require.True(t, ok)
	assert.Equal(t, "CORE:CONNECTIVITY", backendDown.Parent().String())
}

func TestBuild_MappedErrorIsHandled(t *testing.T) {
	flows := loadFlows(t, flowsYAML, testBuildDeps(&recordingPublisher{}))
	orders, ok := flows.Chain("orders")
	require.True(t, ok)

	evt := event.New("order-1", event.WithLocation(component.NewLocation("orders", "processors", "0")))
	out, err := orders.HandleException(context.Background(), errors.ErrConnectionLost, evt)
	require.NoError(t, err)
	assert.Equal(t, "queued", out.Payload())
	v, ok := out.Variable("recovered")
	assert.True(t, ok)
	assert.Equal(t, true, v)
	assert.Nil(t, out.Error())

	// the mapping only applies to processors/0
	other := event.New("order-2", event.WithLocation(component.NewLocation("orders", "processors", "1")))
	_, err = orders.HandleException(context.Background(), errors.ErrConnectionLost, other)
	require.Error(t, err)
	var ex *event.MessagingException
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, "CORE:CONNECTIVITY", ex.ErrorType().String())

	stats, ok := flows.Statistics("orders")
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.ExecutionErrors())
}

func TestBuild_GlobalHandler(t *testing.T) {
	pub := &recordingPublisher{}
	flows := loadFlows(t, flowsYAML, testBuildDeps(pub))

	for _, flow := range []string{"billing", "audit"} {
		chain, ok := flows.Chain(flow)
		require.True(t, ok)
		_, err := chain.HandleException(context.Background(), errors.ErrValidation, event.New(flow))
		require.Error(t, err)
	}

	require.Len(t, pub.messages, 2)
	assert.Equal(t, []string{"orders.dlq", "orders.dlq"}, pub.subjects)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(pub.messages[0], &msg))
	assert.Equal(t, "CORE:VALIDATION", msg["error_type"])
	assert.Equal(t, "billing", msg["payload"])

	billing, _ := flows.Statistics("billing")
	audit, _ := flows.Statistics("audit")
	require.NotNil(t, billing)
	assert.Same(t, billing, audit)
	assert.Equal(t, int64(2), billing.ExecutionErrors())

	require.NoError(t, flows.Dispose())
	assert.Equal(t, 0, flows.Global.References("dead-letter"))
}

func TestBuild_AutoRegistersMappingTarget(t *testing.T) {
	flows := loadFlows(t, `
flows:
  orders:
    mappings:
      - {component: processors/0, source: TIMEOUT, target: EXT:SLOW}
`, testBuildDeps(&recordingPublisher{}))

	slow, ok := flows.Repository.LookupErrorType(component.MustParseIdentifier("EXT:SLOW"))
	require.True(t, ok)
	assert.Same(t, flows.Repository.AnyErrorType(), slow.Parent())
}

func TestBuild_ComponentErrorTypes(t *testing.T) {
	flows := loadFlows(t, `
component_error_types:
  - {component: HTTP:request, contains: "status 503", type: HTTP:SERVICE_UNAVAILABLE}
flows:
  orders:
    components:
      processors/1: HTTP:request
    handlers:
      - kind: on-error-continue
        type: HTTP:SERVICE_UNAVAILABLE
        processors:
          - name: set-payload
            params: {value: retry-later}
`, testBuildDeps(&recordingPublisher{}))

	unavailable, ok := flows.Repository.LookupErrorType(component.MustParseIdentifier("HTTP:SERVICE_UNAVAILABLE"))
	require.True(t, ok)
	assert.Same(t, flows.Repository.AnyErrorType(), unavailable.Parent())

	orders, ok := flows.Chain("orders")
	require.True(t, ok)
	ctx := context.Background()
	fault := fmt.Errorf("GET /stock: status 503: %w", errors.ErrConnectionLost)
	at := func(path ...string) *event.Event {
		return event.New("order", event.WithLocation(component.NewLocation("orders", path...)))
	}

	out, err := orders.HandleException(ctx, fault, at("processors", "1"))
	require.NoError(t, err)
	assert.Equal(t, "retry-later", out.Payload())

	// processors/0 is not bound to HTTP:request
	_, err = orders.HandleException(ctx, fault, at("processors", "0"))
	var ex *event.MessagingException
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, "CORE:CONNECTIVITY", ex.ErrorType().String())

	out, err = orders.HandleException(ctx, fault, at("processors", "0"),
		handler.FromComponent(component.MustParseIdentifier("HTTP:request")))
	require.NoError(t, err)
	assert.Equal(t, "retry-later", out.Payload())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown handler type", `
flows:
  orders:
    handlers:
      - {kind: continue, type: APP:MISSING}
`},
		{"continue on source response", `
flows:
  orders:
    handlers:
      - {kind: continue, type: SOURCE_RESPONSE}
`},
		{"unknown processor", `
flows:
  orders:
    handlers:
      - kind: continue
        processors: [{name: retry-forever}]
`},
		{"invalid processor params", `
flows:
  orders:
    handlers:
      - kind: continue
        processors: [{name: set-variable}]
`},
		{"invalid global handler", `
error_handlers:
  shared:
    - {kind: propagate}
    - {kind: continue}
`},
		{"unknown core mapping target", `
flows:
  orders:
    mappings:
      - {component: processors/0, source: TIMEOUT, target: NOPE}
`},
		{"unknown core component type", `
component_error_types:
  - {component: HTTP:request, contains: "503", type: NOPE}
`},
		{"unknown mapping source", `
flows:
  orders:
    mappings:
      - {component: processors/0, source: APP:NOPE, target: TIMEOUT}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFile(writeFile(t, t.TempDir(), "flows.yaml", tt.doc))
			require.NoError(t, err)

			_, err = Build(cfg, testBuildDeps(&recordingPublisher{}))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), err.Error())
		})
	}
}

func TestBuild_DuplicateCustomType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ErrorTypes = []ErrorTypeConfig{{ID: "APP:X"}, {ID: "APP:X"}}
	_, err := Build(cfg, testBuildDeps(&recordingPublisher{}))
	assert.ErrorIs(t, err, errors.ErrDuplicateErrorType)
}
