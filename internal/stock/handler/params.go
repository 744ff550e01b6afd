package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

// Date is a calendar date in a request body. It accepts "2006-01-02" or RFC 3339.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Ptr returns the date as a time pointer, or nil for a nil Date
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// idParam returns the {name} URL parameter, rejecting anything that is not a UUID
func idParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if _, err := uuid.Parse(raw); err != nil {
		return "", errors.Validation(map[string]string{name: "must be a valid UUID"})
	}
	return raw, nil
}

func queryUUID(r *http.Request, name string, details map[string]string) string {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return ""
	}
	if _, err := uuid.Parse(raw); err != nil {
		details[name] = "must be a valid UUID"
		return ""
	}
	return raw
}

func queryDate(r *http.Request, name string, details map[string]string) *time.Time {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	t, err := parseDate(raw)
	if err != nil {
		details[name] = "must be a date (YYYY-MM-DD)"
		return nil
	}
	return &t
}

func queryInt(r *http.Request, name string, details map[string]string) *int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		details[name] = "must be an integer"
		return nil
	}
	return &n
}

func queryBool(r *http.Request, name string, details map[string]string) *bool {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		details[name] = "must be true or false"
		return nil
	}
	return &b
}
