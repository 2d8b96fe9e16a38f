package chat

import (
	"testing"

	"github.com/mcoutinho/chatcore/internal/transport"
)

func ref(id string) transport.ConversationRef {
	return transport.ConversationRef{ID: id, Type: transport.SingleChat}
}

func headAt(ts int64) *transport.Message {
	return &transport.Message{ID: "m", Kind: transport.KindText, Timestamp: ts}
}

func orderOf(x *Index) []string {
	var out []string
	for _, c := range x.List() {
		out = append(out, c.Ref.ID)
	}
	return out
}

func TestSortPinnedFirstThenRecency(t *testing.T) {
	x := NewIndex()
	x.Add(&Conversation{Ref: ref("a"), LastMessage: headAt(100)})
	x.Add(&Conversation{Ref: ref("b"), LastMessage: headAt(300), IsPinned: true})
	x.Add(&Conversation{Ref: ref("c"), LastMessage: headAt(200)})
	x.Add(&Conversation{Ref: ref("d"), LastMessage: headAt(400)})
	x.Sort()

	want := []string{"b", "d", "c", "a"}
	got := orderOf(x)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSortPinnedByPinTimeWithoutHeads(t *testing.T) {
	x := NewIndex()
	x.Add(&Conversation{Ref: ref("a"), IsPinned: true, PinnedTime: 5})
	x.Add(&Conversation{Ref: ref("b"), IsPinned: true, PinnedTime: 10})
	x.Add(&Conversation{Ref: ref("c"), LastMessage: headAt(20)})
	x.Add(&Conversation{Ref: ref("d"), LastMessage: headAt(30)})
	x.Sort()

	want := []string{"b", "a", "d", "c"}
	got := orderOf(x)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSortKeepsOrderForMissingTimestamps(t *testing.T) {
	x := NewIndex()
	x.Add(&Conversation{Ref: ref("a")})
	x.Add(&Conversation{Ref: ref("b"), LastMessage: headAt(50)})
	x.Add(&Conversation{Ref: ref("c")})
	x.Sort()

	got := orderOf(x)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMergeKeepsLocalUnreadAndMention(t *testing.T) {
	x := NewIndex()
	x.Add(&Conversation{
		Ref:         ref("peer"),
		LastMessage: headAt(10),
		UnreadCount: 3,
		Mention:     MentionMe,
	})
	x.Merge([]*transport.ConversationItem{{
		Ref:         ref("peer"),
		LastMessage: headAt(20),
		UnreadCount: 99,
		IsPinned:    true,
		PinnedTime:  5,
	}})

	c := x.Get(ref("peer"))
	if c.UnreadCount != 3 {
		t.Fatalf("unread = %d, want local 3", c.UnreadCount)
	}
	if c.Mention != MentionMe {
		t.Fatalf("mention = %q, want local %q", c.Mention, MentionMe)
	}
	if !c.IsPinned || c.PinnedTime != 5 {
		t.Fatalf("pin state not adopted from server: %+v", c)
	}
	if c.LastMessage.Timestamp != 20 {
		t.Fatalf("newer server head not adopted, ts = %d", c.LastMessage.Timestamp)
	}
}

func TestMergeKeepsNewerLocalHead(t *testing.T) {
	x := NewIndex()
	x.Add(&Conversation{Ref: ref("peer"), LastMessage: headAt(30)})
	x.Merge([]*transport.ConversationItem{{Ref: ref("peer"), LastMessage: headAt(20)}})

	if ts := x.Get(ref("peer")).LastMessage.Timestamp; ts != 30 {
		t.Fatalf("head ts = %d, want local 30 kept", ts)
	}
}

func TestUpsertFromServerAdoptsZeroTimestampHead(t *testing.T) {
	x := NewIndex()
	x.Add(&Conversation{Ref: ref("peer")})
	x.Merge([]*transport.ConversationItem{{Ref: ref("peer"), LastMessage: headAt(0)}})

	c := x.Get(ref("peer"))
	if c.LastMessage == nil {
		t.Fatal("zero-timestamp server head not adopted over empty local head")
	}

	// but a populated local head beats a zero server timestamp
	c.LastMessage = headAt(7)
	x.Merge([]*transport.ConversationItem{{Ref: ref("peer"), LastMessage: headAt(0)}})
	if ts := x.Get(ref("peer")).LastMessage.Timestamp; ts != 7 {
		t.Fatalf("head ts = %d, want 7", ts)
	}
}

func TestMoveToFrontThenSortKeepsPinnedAbove(t *testing.T) {
	x := NewIndex()
	x.Add(&Conversation{Ref: ref("pinned"), IsPinned: true, LastMessage: headAt(10)})
	x.Add(&Conversation{Ref: ref("a"), LastMessage: headAt(20)})
	x.Add(&Conversation{Ref: ref("b"), LastMessage: headAt(30)})
	x.Sort()

	x.MoveToFront(ref("a"))
	x.Sort()

	got := orderOf(x)
	if got[0] != "pinned" {
		t.Fatalf("pinned conversation displaced: %v", got)
	}
}

func TestTotalUnreadSkipsMuted(t *testing.T) {
	x := NewIndex()
	x.Add(&Conversation{Ref: ref("a"), UnreadCount: 2})
	x.Add(&Conversation{Ref: ref("b"), UnreadCount: 5, Muted: true})
	x.Add(&Conversation{Ref: ref("c"), UnreadCount: 1})

	if got := x.TotalUnread(); got != 3 {
		t.Fatalf("total unread = %d, want 3", got)
	}
}
