package oss

import "testing"

func TestIDGeneratorNextSequencesByLevel(t *testing.T) {
	t.Parallel()
	g := NewIDGenerator()
	g.SetLevels(2)

	first := g.Next(1)
	second := g.Next(1)
	if second != first+1 {
		t.Errorf("expected sequential ids on the same level, got %d then %d", first, second)
	}
	if DecodeLevel(first) != 1 {
		t.Errorf("DecodeLevel(%d) = %d, want 1", first, DecodeLevel(first))
	}
}

func TestIDGeneratorNegativeLevelCountsDown(t *testing.T) {
	t.Parallel()
	g := NewIDGenerator()
	g.SetLevels(2)

	first := g.Next(-1)
	second := g.Next(-1)
	if second >= first {
		t.Errorf("expected negative-level sequence to count down, got %d then %d", first, second)
	}
	if DecodeLevel(first) != -1 {
		t.Errorf("DecodeLevel(%d) = %d, want -1", first, DecodeLevel(first))
	}
}

func TestIDGeneratorZeroLevelCountsUp(t *testing.T) {
	t.Parallel()
	g := NewIDGenerator()
	g.SetLevels(1)

	first := g.Next(0)
	second := g.Next(0)
	if second != first+1 {
		t.Errorf("expected level-0 ids to count up, got %d then %d", first, second)
	}
}

func TestCloidRoundTripsPositiveAndNegative(t *testing.T) {
	t.Parallel()
	for _, id := range []int64{0, 1, 12345, -1, -12345} {
		hex := Cloid(id)
		got, err := ParseCloid(hex)
		if err != nil {
			t.Fatalf("ParseCloid(%q): %v", hex, err)
		}
		if got != id {
			t.Errorf("round trip for %d produced %q -> %d", id, hex, got)
		}
	}
}

func TestParseCloidRejectsInvalidHex(t *testing.T) {
	t.Parallel()
	if _, err := ParseCloid("0xnotapropositionhex"); err == nil {
		t.Error("expected error for invalid hex")
	}
}
