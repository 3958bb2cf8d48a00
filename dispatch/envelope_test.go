package dispatch

import "testing"

func TestDecodeEnvelope(t *testing.T) {
	raw := []byte(`{
		"resource": "messages",
		"event": "created",
		"name": "flint:room:r-1",
		"actorId": "p-1",
		"data": {"id": "m-1", "roomId": "r-1", "personId": "p-1"}
	}`)
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if env.Resource != "messages" || env.Event != "created" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Data.ID != "m-1" || env.Data.RoomID != "r-1" {
		t.Fatalf("unexpected data: %+v", env.Data)
	}
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{{{`,
		"missing resource": `{"event":"created","data":{"id":"x"}}`,
		"missing event":    `{"resource":"messages","data":{"id":"x"}}`,
		"missing data id":  `{"resource":"messages","event":"created","data":{}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeEnvelope([]byte(raw)); err == nil {
				t.Fatalf("DecodeEnvelope accepted %s", name)
			}
		})
	}
}

func TestKindFor(t *testing.T) {
	cases := []struct {
		resource, event string
		want            Kind
		ok              bool
	}{
		{"rooms", "created", RoomCreated, true},
		{"rooms", "updated", RoomUpdated, true},
		{"memberships", "created", MembershipCreated, true},
		{"memberships", "updated", MembershipUpdated, true},
		{"memberships", "deleted", MembershipDeleted, true},
		{"messages", "created", MessageCreated, true},
		{"messages", "deleted", MessageDeleted, true},
		{"attachmentActions", "created", AttachmentActionCreated, true},
		{"rooms", "deleted", "", false},
		{"bogus", "created", "", false},
	}
	for _, tc := range cases {
		kind, ok := kindFor(tc.resource, tc.event)
		if ok != tc.ok {
			t.Fatalf("kindFor(%s, %s) ok = %v, want %v", tc.resource, tc.event, ok, tc.ok)
		}
		if ok && kind != tc.want {
			t.Fatalf("kindFor(%s, %s) = %v, want %v", tc.resource, tc.event, kind, tc.want)
		}
	}
}
