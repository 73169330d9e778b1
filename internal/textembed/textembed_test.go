package textembed

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 1},
		{"a", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{"this is a twenty char text!", 8},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestPackUnpackF32RoundTrip(t *testing.T) {
	vec := []float32{0, 1, -1.5, 3.14159, 1e10, -1e-10}
	blob := PackF32(vec)
	if len(blob) != 4*len(vec) {
		t.Fatalf("PackF32 produced %d bytes, want %d", len(blob), 4*len(vec))
	}
	got := UnpackF32(blob)
	if len(got) != len(vec) {
		t.Fatalf("UnpackF32 produced %d floats, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("round trip [%d] = %v, want %v", i, got[i], vec[i])
		}
	}
}

func TestZeroVector(t *testing.T) {
	blob := ZeroVector(8)
	if len(blob) != 32 {
		t.Fatalf("ZeroVector(8) = %d bytes, want 32", len(blob))
	}
	for _, f := range UnpackF32(blob) {
		if f != 0 {
			t.Errorf("ZeroVector produced non-zero component %v", f)
		}
	}
}
