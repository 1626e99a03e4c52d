package eventlog

import "testing"

func TestRingBufferGetTailOrdersOldestFirst(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer(3)
	rb.Add(Entry{Seq: 1, Line: "a"})
	rb.Add(Entry{Seq: 2, Line: "b"})
	rb.Add(Entry{Seq: 3, Line: "c"})
	rb.Add(Entry{Seq: 4, Line: "d"})

	tail := rb.GetTail(2)
	if len(tail) != 2 || tail[0].Line != "c" || tail[1].Line != "d" {
		t.Fatalf("expected [c d], got %+v", tail)
	}
}

func TestRingBufferWrapsAtCapacity(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer(2)
	rb.Add(Entry{Line: "a"})
	rb.Add(Entry{Line: "b"})
	rb.Add(Entry{Line: "c"})

	all := rb.GetAll()
	if len(all) != 2 || all[0].Line != "b" || all[1].Line != "c" {
		t.Fatalf("expected [b c] after wrap, got %+v", all)
	}
	if rb.Count() != 2 {
		t.Fatalf("expected count to cap at buffer size, got %d", rb.Count())
	}
}

func TestRingBufferNDJSONOneObjectPerLine(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer(4)
	rb.Add(Entry{Line: "a"})
	rb.Add(Entry{Line: "b"})

	data := rb.NDJSON()
	if string(data) == "" {
		t.Fatal("expected non-empty NDJSON output")
	}
}
