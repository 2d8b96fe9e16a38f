package ws

import (
	"encoding/json"
	"testing"

	"github.com/mcoutinho/chatcore/internal/transport"
)

func TestValidatePush(t *testing.T) {
	sch, err := newPushValidator()
	if err != nil {
		t.Fatalf("newPushValidator: %v", err)
	}

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"message push", `{"push":"message","data":{"message":{"id":"m1"}}}`, false},
		{"presence push", `{"push":"presence","data":{"entries":[]}}`, false},
		{"unknown kind", `{"push":"explode","data":{}}`, true},
		{"missing data", `{"push":"message"}`, true},
		{"data not object", `{"push":"message","data":[1,2]}`, true},
		{"not json", `{push}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePush(sch, []byte(tc.raw))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestDecodePushVariants(t *testing.T) {
	tests := []struct {
		kind string
		data string
		want func(t *testing.T, ev transport.Event)
	}{
		{
			kind: pushMessage,
			data: `{"message":{"id":"m1","kind":"txt","body":"hi"}}`,
			want: func(t *testing.T, ev transport.Event) {
				me, ok := ev.(transport.MessageEvent)
				if !ok || me.Message.ID != "m1" || me.Message.Body != "hi" {
					t.Fatalf("event = %#v", ev)
				}
			},
		},
		{
			kind: pushRecall,
			data: `{"message_id":"m1","from":"alice","to":"me","chat_type":"singleChat"}`,
			want: func(t *testing.T, ev transport.Event) {
				re, ok := ev.(transport.RecallEvent)
				if !ok || re.MessageID != "m1" || re.From != "alice" {
					t.Fatalf("event = %#v", ev)
				}
			},
		},
		{
			kind: pushReceipt,
			data: `{"message_id":"m1","read":true}`,
			want: func(t *testing.T, ev transport.Event) {
				re, ok := ev.(transport.ReceiptEvent)
				if !ok || !re.Read {
					t.Fatalf("event = %#v", ev)
				}
			},
		},
		{
			kind: pushMultiDevice,
			data: `{"op":"pinnedConversation","ref":{"id":"alice","type":"singleChat"},"timestamp":42}`,
			want: func(t *testing.T, ev transport.Event) {
				md, ok := ev.(transport.MultiDeviceEvent)
				if !ok || md.Op != transport.MultiDevicePin || md.Timestamp != 42 {
					t.Fatalf("event = %#v", ev)
				}
			},
		},
		{
			kind: pushGroup,
			data: `{"group_id":"g1","from":"bob","operation":"memberJoined"}`,
			want: func(t *testing.T, ev transport.Event) {
				ge, ok := ev.(transport.GroupEvent)
				if !ok || ge.GroupID != "g1" || ge.Operation != "memberJoined" {
					t.Fatalf("event = %#v", ev)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.kind, func(t *testing.T) {
			ev, err := decodePush(tc.kind, json.RawMessage(tc.data))
			if err != nil {
				t.Fatalf("decodePush: %v", err)
			}
			tc.want(t, ev)
		})
	}
}

func TestDecodePushRejectsGarbage(t *testing.T) {
	if _, err := decodePush("nope", json.RawMessage(`{}`)); err == nil {
		t.Fatal("unknown kind accepted")
	}
	if _, err := decodePush(pushMessage, json.RawMessage(`{"message":null}`)); err == nil {
		t.Fatal("message push without message accepted")
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	f, err := encodeFrame(7, opSend, &transport.Message{ID: "m1", Kind: transport.KindText})
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back frame
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != 7 || back.Op != opSend || back.isPush() {
		t.Fatalf("frame = %+v", back)
	}
	var msg transport.Message
	if err := json.Unmarshal(back.Data, &msg); err != nil || msg.ID != "m1" {
		t.Fatalf("payload = %+v, err %v", msg, err)
	}
}
