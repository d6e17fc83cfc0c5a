package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shinyyama/support-chat-backend/internal/model"
)

func lastError(t *testing.T, c *Client) ErrorPayload {
	t.Helper()
	events := drain(c)
	if len(events) == 0 {
		t.Fatal("no event pushed")
	}
	var env WSMessage
	if err := json.Unmarshal(events[len(events)-1], &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypeError {
		t.Fatalf("type=%s want error", env.Type)
	}
	var p ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return p
}

func TestGatewayRejectsSpoofedSenderIdentity(t *testing.T) {
	hub := NewHub(nil)
	gw := NewGateway(nil, nil, nil, nil)
	c := newTestClient(hub, "m1", model.RoleMember)
	hub.Register(c)

	raw, _ := json.Marshal(SendMessagePayload{RoomID: 1, Body: "hi", SenderID: "m2"})
	gw.handleMessage(context.Background(), c, raw)
	if p := lastError(t, c); p.Kind != "validation" {
		t.Fatalf("kind=%s want validation", p.Kind)
	}

	raw, _ = json.Marshal(SendMessagePayload{RoomID: 1, Body: "hi", SenderRole: model.RoleAdmin})
	gw.handleMessage(context.Background(), c, raw)
	if p := lastError(t, c); p.Kind != "validation" {
		t.Fatalf("kind=%s want validation", p.Kind)
	}
}

func TestGatewayTargetMember(t *testing.T) {
	gw := NewGateway(nil, nil, nil, nil)
	hub := NewHub(nil)
	member := newTestClient(hub, "m1", model.RoleMember)
	admin := newTestClient(hub, "a1", model.RoleAdmin)

	tests := []struct {
		name     string
		client   *Client
		memberID string
		want     string
		ok       bool
	}{
		{"member self implicit", member, "", "m1", true},
		{"member self explicit", member, "m1", "m1", true},
		{"member spoofing", member, "m2", "", false},
		{"admin names member", admin, "m2", "m2", true},
		{"admin missing member", admin, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := gw.targetMember(tt.client, tt.memberID)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("got=(%q,%v) want=(%q,%v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestGatewayUnknownEventType(t *testing.T) {
	hub := NewHub(nil)
	gw := NewGateway(nil, nil, nil, nil)
	c := newTestClient(hub, "m1", model.RoleMember)
	hub.Register(c)

	gw.Dispatch(c, WSMessage{Type: "selfDestruct"})
	if p := lastError(t, c); p.Kind != "validation" {
		t.Fatalf("kind=%s want validation", p.Kind)
	}
}
