package timeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Ease maps linear progress in [0, 1] to eased progress.
type Ease func(t float64) float64

// Linear applies no easing.
func Linear(t float64) float64 {
	return t
}

// Power1Out decelerates quadratically. It is the default ease.
func Power1Out(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

// Power2InOut accelerates then decelerates cubically.
func Power2InOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// ExpoOut decelerates exponentially.
func ExpoOut(t float64) float64 {
	if t >= 1 {
		return 1
	}
	return 1 - math.Pow(2, -10*t)
}

// ElasticOut overshoots and oscillates into place. amplitude below 1 is
// raised to 1.
func ElasticOut(amplitude, period float64) Ease {
	if amplitude < 1 {
		amplitude = 1
	}
	if period <= 0 {
		period = 0.3
	}
	shift := period / (2 * math.Pi) * math.Asin(1/amplitude)
	return func(t float64) float64 {
		if t <= 0 {
			return 0
		}
		if t >= 1 {
			return 1
		}
		return amplitude*math.Pow(2, -10*t)*math.Sin((t-shift)*(2*math.Pi)/period) + 1
	}
}

// ParseEase resolves an ease name. Both "expo.out" and "Expo.easeOut" styles
// are accepted; elastic takes optional "(amplitude, period)" arguments.
func ParseEase(name string) (Ease, error) {
	n := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	args := ""
	if i := strings.IndexByte(n, '('); i >= 0 && strings.HasSuffix(n, ")") {
		args = n[i+1 : len(n)-1]
		n = strings.TrimSuffix(n[:i], ".config")
	}
	n = strings.Replace(n, ".ease", ".", 1)

	switch n {
	case "", "power1.out", "quad.out":
		return Power1Out, nil
	case "linear", "none", "linear.none":
		return Linear, nil
	case "power2.inout", "cubic.inout":
		return Power2InOut, nil
	case "expo.out":
		return ExpoOut, nil
	case "elastic.out":
		amplitude, period := 1.0, 0.3
		if args != "" {
			parts := strings.Split(args, ",")
			vals := make([]float64, len(parts))
			for i, p := range parts {
				v, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return nil, fmt.Errorf("timeline: ease %q: %w", name, err)
				}
				vals[i] = v
			}
			amplitude = vals[0]
			if len(vals) > 1 {
				period = vals[1]
			}
		}
		return ElasticOut(amplitude, period), nil
	}
	return nil, fmt.Errorf("timeline: unknown ease %q", name)
}
