package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Notification is one entry of the device notification list
type Notification struct {
	Package string `json:"packageName"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	When    string `json:"when"`
}

// SMS is one inbox message
type SMS struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
	Date   string `json:"date"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseTimestamp reads the timestamp shapes emitted by the device exporters:
// RFC3339, local "YYYY-MM-DD HH:MM:SS" and unix milliseconds.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp cannot be empty")
	}
	if loc == nil {
		loc = time.Local
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		// seconds fit in 10 digits until 2286
		if len(s) <= 10 {
			return time.Unix(ms, 0).In(loc), nil
		}
		return time.UnixMilli(ms).In(loc), nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp '%s': %w", s, lastErr)
}

// Time returns the posting time of the notification, or now when absent
func (n Notification) Time(now time.Time) time.Time {
	if t, err := ParseTimestamp(n.When, now.Location()); err == nil {
		return t
	}
	return now
}

// Time returns the receive time of the SMS, or now when absent
func (s SMS) Time(now time.Time) time.Time {
	if t, err := ParseTimestamp(s.Date, now.Location()); err == nil {
		return t
	}
	return now
}
