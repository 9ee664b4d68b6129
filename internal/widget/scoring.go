package widget

import "strconv"

// Score converts a raw signal value into points for the given definition.
// It never returns an error: a misconfigured widget or an uninterpretable
// value scores 0 so one bad widget cannot abort scoring for the tenant.
// The result is clamped to [0, def.PointsAvailable].
func Score(def Definition, raw any) float64 {
	var pts float64
	switch def.ScoringType {
	case ScoringYesNo:
		if b, ok := asBool(raw); ok && b {
			pts = def.Config.YesPoints
		} else {
			pts = def.Config.NoPoints
		}

	case ScoringBoundedRange:
		n, ok := asNumber(raw)
		if ok && n >= def.Config.Min && n <= def.Config.Max {
			pts = def.Config.InRangePoints
		} else {
			pts = def.Config.FallbackPoints
		}

	case ScoringPercentage:
		n, _ := asNumber(raw)
		pts = capPoints(n*def.Config.Scale, def.Config.MaxPoints)

	case ScoringInversePercentage:
		// Lower raw value means better posture (e.g. unsupported devices).
		n, _ := asNumber(raw)
		pts = capPoints((100-n)*def.Config.Scale, def.Config.MaxPoints)

	default:
		return 0
	}

	if pts < 0 {
		return 0
	}
	if def.PointsAvailable > 0 && pts > def.PointsAvailable {
		return def.PointsAvailable
	}
	return pts
}

func capPoints(pts, max float64) float64 {
	if max > 0 && pts > max {
		return max
	}
	return pts
}

// asBool interprets a raw fetcher value as a boolean.
func asBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	default:
		return false, false
	}
}

// asNumber interprets a raw fetcher value as a float64.
func asNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
