package ring

import (
	"reflect"
	"testing"
)

func TestBuffer_KeepsLastN(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	if got := b.Values(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("Values = %v, want [3 4 5]", got)
	}
	if got := b.Tail(2); !reflect.DeepEqual(got, []int{4, 5}) {
		t.Errorf("Tail(2) = %v, want [4 5]", got)
	}
}

func TestBuffer_PartiallyFilled(t *testing.T) {
	b := New[float64](10)
	b.Push(1.5)
	b.Push(2.5)

	if got := b.Values(); !reflect.DeepEqual(got, []float64{1.5, 2.5}) {
		t.Errorf("Values = %v", got)
	}
	if got := b.Tail(5); len(got) != 2 {
		t.Errorf("Tail clamps to Len, got %d values", len(got))
	}
}

func TestBuffer_Reset(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	b.Reset()

	if b.Len() != 0 {
		t.Fatalf("Len after Reset = %d", b.Len())
	}
	if got := b.Tail(1); len(got) != 0 {
		t.Errorf("Tail after Reset = %v", got)
	}
	if got := b.Values(); len(got) != 0 {
		t.Errorf("Values after Reset = %v", got)
	}

	b.Push(7)
	if got := b.Values(); !reflect.DeepEqual(got, []int{7}) {
		t.Errorf("Values after reuse = %v", got)
	}
}

func TestBuffer_MinimumCapacity(t *testing.T) {
	b := New[int](0)
	b.Push(1)
	b.Push(2)
	if b.Cap() != 1 || !reflect.DeepEqual(b.Values(), []int{2}) {
		t.Errorf("expected single-slot buffer holding 2, got cap=%d values=%v", b.Cap(), b.Values())
	}
}
