package middleware

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pantry-dev/pantry/pkg/pantry"
)

func otelTestRegistry(t *testing.T) *pantry.Registry {
	t.Helper()
	reg := pantry.NewRegistry()
	for _, id := range []string{"traced", "skipped"} {
		def := pantry.DefineStore(id, func() pantry.State {
			return pantry.State{"count": 0}
		}).WithAction("increment", func(s *pantry.Store, _ ...any) (any, error) {
			s.Set("count", s.Get("count").(int)+1)
			return nil, nil
		}).WithAction("explode", func(*pantry.Store, ...any) (any, error) {
			return nil, errors.New("boom")
		})
		if err := reg.Register(def); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return reg
}

func TestOpenTelemetryPlugin_ActionsRunUnchanged(t *testing.T) {
	reg := otelTestRegistry(t)

	var extracted []string
	reg.Use(OpenTelemetry(
		WithTracerName("pantry-test"),
		WithIncludeArgs(true),
		WithAttributeExtractor(func(call *pantry.ActionCall) []attribute.KeyValue {
			extracted = append(extracted, call.Name)
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	))

	store, err := reg.Get("traced")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if _, err := store.Dispatch("increment"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := store.Get("count"); got != 1 {
		t.Fatalf("tracing must not change action behavior, count=%v", got)
	}
	if len(extracted) != 1 || extracted[0] != "increment" {
		t.Fatalf("expected attribute extractor per dispatch, got %v", extracted)
	}
}

func TestOpenTelemetryPlugin_ErrorStillPropagates(t *testing.T) {
	reg := otelTestRegistry(t)
	reg.Use(OpenTelemetry())

	store, err := reg.Get("traced")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	_, err = store.Dispatch("explode")
	var aerr *pantry.ActionError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *pantry.ActionError through traced dispatch, got %v", err)
	}
}

func TestOpenTelemetryPlugin_StoreFilterSkipsStore(t *testing.T) {
	reg := otelTestRegistry(t)

	var extracted int
	reg.Use(OpenTelemetry(
		WithStoreFilter(func(s *pantry.Store) bool {
			return s.ID() != "skipped"
		}),
		WithAttributeExtractor(func(*pantry.ActionCall) []attribute.KeyValue {
			extracted++
			return nil
		}),
	))

	skipped, err := reg.Get("skipped")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	traced, err := reg.Get("traced")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if _, err := skipped.Dispatch("increment"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if extracted != 0 {
		t.Fatal("expected no tracing on a filtered store")
	}

	if _, err := traced.Dispatch("increment"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if extracted != 1 {
		t.Fatalf("expected tracing on an unfiltered store, got %d", extracted)
	}
}
