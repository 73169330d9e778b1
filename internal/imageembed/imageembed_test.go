package imageembed

import "testing"

func TestDetectLayoutChannelsFirst(t *testing.T) {
	cf, w, h := detectLayout([]int64{1, 3, 224, 224})
	if !cf || w != 224 || h != 224 {
		t.Fatalf("got channelsFirst=%v w=%d h=%d", cf, w, h)
	}
}

func TestDetectLayoutChannelsLast(t *testing.T) {
	cf, w, h := detectLayout([]int64{1, 299, 299, 3})
	if cf || w != 299 || h != 299 {
		t.Fatalf("got channelsFirst=%v w=%d h=%d", cf, w, h)
	}
}

func TestDetectLayoutDynamicDimsDefault(t *testing.T) {
	cf, w, h := detectLayout([]int64{-1, 3, -1, -1})
	if !cf || w != defaultSpatialDim || h != defaultSpatialDim {
		t.Fatalf("got channelsFirst=%v w=%d h=%d", cf, w, h)
	}
}

func TestDetectLayoutNon4D(t *testing.T) {
	cf, w, h := detectLayout([]int64{1, 512})
	if cf || w != defaultSpatialDim || h != defaultSpatialDim {
		t.Fatalf("got channelsFirst=%v w=%d h=%d", cf, w, h)
	}
}

func TestOutputDim(t *testing.T) {
	if got := outputDim([]int64{1, 512}); got != 512 {
		t.Errorf("outputDim = %d, want 512", got)
	}
	if got := outputDim([]int64{1, 1}); got != 512 {
		t.Errorf("outputDim fallback = %d, want 512", got)
	}
}
