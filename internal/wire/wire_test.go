package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func mustDecode(t *testing.T, b []byte) Entry {
	t.Helper()
	e, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return e
}

func TestRoundTrip(t *testing.T) {
	deadline := time.Unix(1_700_000_000, 123456789)
	cases := []Entry{
		{},
		{Priority: 3, Payload: []byte("hello")},
		{Priority: 1, Deadline: deadline, Payload: []byte{0, 1, 2}},
		{Priority: 2, Deadline: deadline, Sliding: 90 * time.Second, Payload: []byte("x")},
	}
	for _, tc := range cases {
		got := mustDecode(t, Encode(tc))
		if got.Priority != tc.Priority {
			t.Fatalf("priority mismatch: got %d want %d", got.Priority, tc.Priority)
		}
		if !got.Deadline.Equal(tc.Deadline) {
			t.Fatalf("deadline mismatch: got %v want %v", got.Deadline, tc.Deadline)
		}
		if got.Sliding != tc.Sliding {
			t.Fatalf("sliding mismatch: got %v want %v", got.Sliding, tc.Sliding)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestZeroDeadlineMeansNoExpiry(t *testing.T) {
	e := mustDecode(t, Encode(Entry{Payload: []byte("v")}))
	if !e.Deadline.IsZero() {
		t.Fatalf("expected zero deadline, got %v", e.Deadline)
	}
	if e.Expired(time.Now().Add(1000 * time.Hour)) {
		t.Fatalf("entry without deadline must never expire")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	e := Entry{Deadline: now}
	if !e.Expired(now) {
		t.Fatalf("deadline == now should be expired")
	}
	if e.Expired(now.Add(-time.Nanosecond)) {
		t.Fatalf("before deadline should not be expired")
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := Encode(Entry{Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestCorruptHeadersAndLengths(t *testing.T) {
	enc := Encode(Entry{Priority: 1, Payload: []byte("abc")})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	// vlen at offset 22..25 (4 magic +1 ver +1 prio +8 deadline +8 sliding)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[22:26], uint32(len("abc")+1))
	if _, err := Decode(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	negSliding := append([]byte(nil), enc...)
	binary.BigEndian.PutUint64(negSliding[14:22], ^uint64(0))
	if _, err := Decode(negSliding); err == nil {
		t.Fatalf("expected error on negative sliding window")
	}

	if _, err := Decode(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
	if _, err := Decode([]byte("not-wire-format")); err == nil {
		t.Fatalf("expected error on foreign bytes")
	}
}

func TestZeroCopyPayload(t *testing.T) {
	enc := Encode(Entry{Payload: []byte("Z")})
	e := mustDecode(t, enc)
	e.Payload[0] = 'Q'
	if mustDecode(t, enc).Payload[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}
