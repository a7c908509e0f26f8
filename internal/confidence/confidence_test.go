package confidence

import "testing"

func TestScore(t *testing.T) {
	tests := []struct {
		channel, subtype string
		want             float64
	}{
		{"sms", "with_ref", 0.90},
		{"notification", "upi_without_ref", 0.75},
		{"notification", "platform_settlement", 0.95},
		{"eod", "confirmed", 1.00},
		{"bulk", "photo", 0.75},
		{"carrier_pigeon", "any", DefaultScore},
		{"sms", "", DefaultScore},
	}

	for _, tt := range tests {
		t.Run(tt.channel+":"+tt.subtype, func(t *testing.T) {
			if got := Score(tt.channel, tt.subtype); got != tt.want {
				t.Errorf("Score(%s, %s) = %v, want %v", tt.channel, tt.subtype, got, tt.want)
			}
		})
	}
}

func TestDecideBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Decision
	}{
		{1.0, AutoConfirm},
		{0.80, AutoConfirm},
		{0.7999, AskOwner},
		{0.60, AskOwner},
		{0.5999, Skip},
		{0.0, Skip},
	}

	for _, tt := range tests {
		if got := Decide(tt.score); got != tt.want {
			t.Errorf("Decide(%v) = %s, want %s", tt.score, got, tt.want)
		}
		if ShouldAutoConfirm(tt.score) != (tt.want == AutoConfirm) {
			t.Errorf("ShouldAutoConfirm(%v) disagrees with Decide", tt.score)
		}
		if ShouldAskOwner(tt.score) != (tt.want == AskOwner) {
			t.Errorf("ShouldAskOwner(%v) disagrees with Decide", tt.score)
		}
		if ShouldSkip(tt.score) != (tt.want == Skip) {
			t.Errorf("ShouldSkip(%v) disagrees with Decide", tt.score)
		}
	}
}
