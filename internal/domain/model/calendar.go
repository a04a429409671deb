package model

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EmptySubmissionCalendar is the textual empty map used when upstream omits
// the calendar.
const EmptySubmissionCalendar = "{}"

// Contributions decodes the submission calendar into days in UTC.
func (c UserCalendar) Contributions() []DailyContribution {
	return DecodeSubmissionCalendar(c.SubmissionCalendar)
}

// DecodeSubmissionCalendar turns the upstream calendar text into one
// DailyContribution per key, sorted by date. Keys must be decimal epoch
// seconds; entries with another key, a count that is not a whole number, or
// a negative count are dropped alone. Undecodable text yields nil.
func DecodeSubmissionCalendar(raw string) []DailyContribution {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	out := make([]DailyContribution, 0, len(entries))
	for key, value := range entries {
		secs, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		count, ok := dayCount(value)
		if !ok || count < 0 {
			continue
		}
		out = append(out, DailyContribution{
			Date:  StartOfDay(time.Unix(secs, 0)),
			Count: count,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// dayCount reads a count written as a JSON number or a quoted decimal.
func dayCount(raw json.RawMessage) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil || n == "" {
		return 0, false
	}
	if v, err := n.Int64(); err == nil && v <= math.MaxInt32 {
		return int(v), true
	}
	f, err := n.Float64()
	if err != nil || f < 0 || f > math.MaxInt32 || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// EncodeSubmissionCalendar renders a day->count mapping in the upstream
// textual format.
func EncodeSubmissionCalendar(days map[int64]int) string {
	entries := make(map[string]int, len(days))
	for ts, count := range days {
		entries[strconv.FormatInt(ts, 10)] = count
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return EmptySubmissionCalendar
	}
	return string(b)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
