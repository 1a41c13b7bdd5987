package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestDispatch_UnknownKindIgnored(t *testing.T) {
	m := NewMux(nil)
	env, err := NewRequest("some-future-kind", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Dispatch(context.Background(), env); ok {
		t.Error("Unknown kinds must not produce a reply")
	}
}

func TestDispatch_RequestReplyEchoesID(t *testing.T) {
	m := NewMux(nil)
	m.Handle("echo", func(_ context.Context, payload json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return s + "!", nil
	})

	req, err := NewRequest("echo", "hello")
	if err != nil {
		t.Fatal(err)
	}
	reply, ok := m.Dispatch(context.Background(), req)
	if !ok {
		t.Fatal("Expected a reply")
	}
	if reply.RequestID != req.RequestID {
		t.Errorf("Reply must echo the requestId, got %q want %q", reply.RequestID, req.RequestID)
	}
	var out string
	if err := json.Unmarshal(reply.Payload, &out); err != nil {
		t.Fatal(err)
	}
	if out != "hello!" {
		t.Errorf("Expected %q, got %q", "hello!", out)
	}
}

func TestDispatch_HandlerErrorBecomesErrorPayload(t *testing.T) {
	m := NewMux(nil)
	m.Handle("fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("collaborator down")
	})

	req, err := NewRequest("fail", nil)
	if err != nil {
		t.Fatal(err)
	}
	reply, ok := m.Dispatch(context.Background(), req)
	if !ok {
		t.Fatal("A failed request still gets a reply")
	}
	var ep ErrorPayload
	if err := json.Unmarshal(reply.Payload, &ep); err != nil {
		t.Fatal(err)
	}
	if ep.Error != "collaborator down" {
		t.Errorf("Expected error payload, got %+v", ep)
	}
}

func TestDispatch_EventProducesNoReply(t *testing.T) {
	m := NewMux(nil)
	var called bool
	m.Handle("ping", func(context.Context, json.RawMessage) (any, error) {
		called = true
		return "ignored", nil
	})

	env, err := NewEvent("ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Dispatch(context.Background(), env); ok {
		t.Error("Events must never produce a reply")
	}
	if !called {
		t.Error("Event handler must still run")
	}
}

func TestNewRequest_UniqueIDs(t *testing.T) {
	a, err := NewRequest("get-state", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewRequest("get-state", nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.RequestID == "" || a.RequestID == b.RequestID {
		t.Errorf("Request ids must be unique and non-empty, got %q and %q", a.RequestID, b.RequestID)
	}
}
