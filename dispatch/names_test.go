package dispatch

import "testing"

func TestSubscriptionName(t *testing.T) {
	if got := SubscriptionName("flint", "r-1"); got != "flint:room:r-1" {
		t.Fatalf("SubscriptionName = %q", got)
	}
}

func TestOwnedName(t *testing.T) {
	cases := []struct {
		name  string
		owner string
		want  bool
	}{
		{"flint", "flint", true},
		{"flint:room:r-1", "flint", true},
		{"other:room:r-1", "flint", false},
		{"flintier:room:r-1", "flint", false},
		{"", "flint", false},
		{"flint:room:r-1", "", false},
	}
	for _, tc := range cases {
		if got := OwnedName(tc.name, tc.owner); got != tc.want {
			t.Fatalf("OwnedName(%q, %q) = %v, want %v", tc.name, tc.owner, got, tc.want)
		}
	}
}

func TestRoomOfName(t *testing.T) {
	if got := RoomOfName("flint:room:r-1"); got != "r-1" {
		t.Fatalf("RoomOfName = %q, want r-1", got)
	}
	if got := RoomOfName("flint"); got != "" {
		t.Fatalf("RoomOfName = %q, want empty for firehose name", got)
	}
}
