package models

import "testing"

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"Mid-quarter", "8:34", 514, false},
		{"Quarter Start", "15:00", 900, false},
		{"Final Seconds", "0:07", 7, false},
		{"Leading Space", " 2:30", 150, false},

		// Invalid inputs
		{"No Colon", "834", 0, true},
		{"Seconds Overflow", "8:61", 0, true},
		{"Negative Minutes", "-1:30", 0, true},
		{"Garbage", "Q2 8:34", 0, true},
		{"Empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClockTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseClockTime(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClockTime(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseClockTime(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestGameClockFormatting(t *testing.T) {
	clock := GameClock{Quarter: 2, Minutes: 8, Seconds: 34}

	if clock.RemainingSeconds() != 514 {
		t.Errorf("RemainingSeconds = %d, want 514", clock.RemainingSeconds())
	}
	if clock.TimeStr() != "8:34" {
		t.Errorf("TimeStr = %q, want %q", clock.TimeStr(), "8:34")
	}
	if clock.String() != "Q2 8:34" {
		t.Errorf("String = %q, want %q", clock.String(), "Q2 8:34")
	}

	// Seconds must be zero-padded
	padded := GameClock{Quarter: 4, Minutes: 12, Seconds: 5}
	if padded.TimeStr() != "12:05" {
		t.Errorf("TimeStr = %q, want %q", padded.TimeStr(), "12:05")
	}

	// Quarter 5 renders as overtime
	ot := GameClock{Quarter: 5, Minutes: 3, Seconds: 1}
	if ot.String() != "OT 3:01" {
		t.Errorf("String = %q, want %q", ot.String(), "OT 3:01")
	}
}
