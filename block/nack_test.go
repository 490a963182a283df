package block

import (
	"reflect"
	"testing"
)

func TestEncodeNackCollapsesRanges(t *testing.T) {
	got := EncodeNack(7, []int{2, 3, 4, 7, 9, 10})
	want := "NACK:BLOCK=7,CHUNKS=2-4,7,9-10"
	if got != want {
		t.Fatalf("EncodeNack = %q, want %q", got, want)
	}
}

func TestEncodeNackSingleChunk(t *testing.T) {
	got := EncodeNack(1, []int{3})
	want := "NACK:BLOCK=1,CHUNKS=3"
	if got != want {
		t.Fatalf("EncodeNack = %q, want %q", got, want)
	}
}

func TestParseNackRoundTrip(t *testing.T) {
	blockID, parts, err := ParseNack("NACK:BLOCK=7,CHUNKS=2-4,7,9-10")
	if err != nil {
		t.Fatalf("ParseNack: %v", err)
	}
	if blockID != 7 {
		t.Fatalf("blockID = %d, want 7", blockID)
	}
	want := []int{2, 3, 4, 7, 9, 10}
	if !reflect.DeepEqual(parts, want) {
		t.Fatalf("parts = %v, want %v", parts, want)
	}
}

func TestParseNackDuplicatesTolerated(t *testing.T) {
	_, parts, err := ParseNack("NACK:BLOCK=1,CHUNKS=3,3,3")
	if err != nil {
		t.Fatalf("ParseNack: %v", err)
	}
	if !reflect.DeepEqual(parts, []int{3}) {
		t.Fatalf("parts = %v, want [3] (duplicates collapsed)", parts)
	}
}

func TestParseNackRejectsMalformed(t *testing.T) {
	cases := []string{
		"NACK:BLOCK=1,CHUNKS=",
		"NACK:BLOCK=abc,CHUNKS=1",
		"NACK:CHUNKS=1",
		"garbage",
		"NACK:BLOCK=1,CHUNKS=5-2",
	}
	for _, c := range cases {
		if _, _, err := ParseNack(c); err == nil {
			t.Fatalf("ParseNack(%q) accepted malformed input", c)
		}
	}
}
