package domain

import "testing"

func TestDetermineSignalQuality(t *testing.T) {
	cases := []struct {
		name string
		snr  float32
		rssi int
		want SignalQuality
	}{
		{"no rssi means unreported", 10, 0, SignalUnknown},
		{"strong link", -5, -100, SignalGood},
		{"rssi drags good down to fair", -5, -120, SignalFair},
		{"snr drags good down to fair", -10, -100, SignalFair},
		{"weak link", -20, -130, SignalBad},
		{"good boundary", SNRGood, RSSIGood, SignalGood},
		{"fair boundary", SNRFair, RSSIFair, SignalFair},
	}
	for _, tc := range cases {
		if got := DetermineSignalQuality(tc.snr, tc.rssi); got != tc.want {
			t.Fatalf("%s: DetermineSignalQuality(%v, %d) = %v, want %v", tc.name, tc.snr, tc.rssi, got, tc.want)
		}
	}
}
