package timeline

import (
	"math"
	"testing"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in   string
		want Position
	}{
		{"", Position{}},
		{"1.5", At(1.5)},
		{"0", At(0)},
		{"+=2.5", Offset(2.5)},
		{"-=1", Offset(-1)},
		{"party", Label("party")},
		{"party+=0.5", LabelOffset("party", 0.5)},
		{"party-=0.25", LabelOffset("party", -0.25)},
		{"wish-hbd", Label("wish-hbd")},
		{"wish-hbd+=1", LabelOffset("wish-hbd", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePosition(tt.in)
			if err != nil {
				t.Fatalf("ParsePosition(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePosition(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if again, _ := ParsePosition(got.String()); again != got {
				t.Errorf("String() %q does not parse back", got.String())
			}
		})
	}
}

func TestParsePositionInvalid(t *testing.T) {
	for _, in := range []string{"+=", "-=x", "party+=abc"} {
		if _, err := ParsePosition(in); err == nil {
			t.Errorf("ParsePosition(%q) expected error", in)
		}
	}
}

func TestParseEase(t *testing.T) {
	names := []string{
		"", "power1.out", "Power1.easeOut", "linear", "Linear.easeNone",
		"power2.inOut", "expo.out", "Expo.easeOut",
		"elastic.out", "elastic.out(1, 0.5)", "Elastic.easeOut.config(1, 0.5)",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			e, err := ParseEase(name)
			if err != nil {
				t.Fatalf("ParseEase(%q): %v", name, err)
			}
			if got := e(0); math.Abs(got) > 1e-9 {
				t.Errorf("ease(0) = %v, want 0", got)
			}
			if got := e(1); math.Abs(got-1) > 1e-9 {
				t.Errorf("ease(1) = %v, want 1", got)
			}
		})
	}

	for _, bad := range []string{"bounce.out", "elastic.out(a)"} {
		if _, err := ParseEase(bad); err == nil {
			t.Errorf("ParseEase(%q) expected error", bad)
		}
	}
}

func TestEaseShapes(t *testing.T) {
	if got := Power1Out(0.5); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Power1Out(0.5) = %v, want 0.75", got)
	}
	if got := Power2InOut(0.5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Power2InOut(0.5) = %v, want 0.5", got)
	}
	overshoot := false
	el := ElasticOut(1, 0.5)
	for i := 1; i < 100; i++ {
		if el(float64(i)/100) > 1 {
			overshoot = true
		}
	}
	if !overshoot {
		t.Error("ElasticOut never overshoots")
	}
}
