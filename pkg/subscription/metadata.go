package subscription

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FromMetadata builds a Record from the identity provider's public metadata bag.
// Missing keys leave the zero value; a missing status means free.
// Malformed values return ErrInvalidMetadata so that a bad payload never replaces a good cache.
func FromMetadata(meta map[string]any) (Record, error) {
	rec := Free()
	if meta == nil {
		return rec, nil
	}

	if raw, ok := meta[MetaStatus]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return Record{}, errors.Join(ErrInvalidMetadata, fmt.Errorf("%s: unexpected type %T", MetaStatus, raw))
		}
		rec.Status = ParseStatus(s)
	}

	rec.CustomerRef = stringValue(meta[MetaCustomerID])
	rec.SubscriptionRef = stringValue(meta[MetaSubscriptionID])
	rec.PlanID = stringValue(meta[MetaPlanID])
	rec.CancelAtPeriodEnd = boolValue(meta[MetaCancelAtPeriodEnd])
	rec.GracePeriod = boolValue(meta[MetaGracePeriod])

	if raw, ok := meta[MetaPeriodEnd]; ok && raw != nil {
		t, err := parseTime(raw)
		if err != nil {
			return Record{}, errors.Join(ErrInvalidMetadata, fmt.Errorf("%s: %w", MetaPeriodEnd, err))
		}
		rec.PeriodEnd = t
	}

	return rec, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func boolValue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	default:
		return false
	}
}

// parseTime accepts RFC3339 strings and unix seconds (JSON numbers decode as float64).
func parseTime(v any) (*time.Time, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, nil
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
		secs, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unsupported time format %q", t)
		}
		parsed := time.Unix(secs, 0).UTC()
		return &parsed, nil
	case float64:
		parsed := time.Unix(int64(t), 0).UTC()
		return &parsed, nil
	case int64:
		parsed := time.Unix(t, 0).UTC()
		return &parsed, nil
	case int:
		parsed := time.Unix(int64(t), 0).UTC()
		return &parsed, nil
	case time.Time:
		parsed := t.UTC()
		return &parsed, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}
