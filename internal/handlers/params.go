package handlers

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/railticket/internal/models"
)

// required reads the named params, reporting every missing one at once
func required(q url.Values, names ...string) ([]string, error) {
	values := make([]string, len(names))
	var missing []string
	for i, n := range names {
		values[i] = strings.TrimSpace(q.Get(n))
		if values[i] == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, badRequest(ErrMissingParams, map[string]interface{}{
			"required": names,
			"missing":  missing,
		})
	}
	return values, nil
}

func parseDate(s string) (string, error) {
	if _, err := time.Parse(models.DateLayout, s); err != nil {
		return "", badRequest(ErrInvalidDate, map[string]interface{}{"date": s})
	}
	return s, nil
}

// parsePositive reads an optional positive integer; absent means 0
func parsePositive(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, invalidParam(name, raw)
	}
	return n, nil
}

func parseSort(q url.Values, name string) (models.SortKey, error) {
	raw := q.Get(name)
	key, ok := models.ParseSortKey(raw)
	if !ok {
		return "", invalidParam(name, raw)
	}
	return key, nil
}

// parseWindow reads an optional HH:MM departure window
func parseWindow(q url.Values) (string, string, error) {
	start, err := parseClock(q, "depStart")
	if err != nil {
		return "", "", err
	}
	end, err := parseClock(q, "depEnd")
	if err != nil {
		return "", "", err
	}
	if start != "" && end != "" && start > end {
		return "", "", invalidParam("depEnd", end)
	}
	return start, end, nil
}

// parseClock normalizes "8:05" to "08:05" so times compare as strings
func parseClock(q url.Values, name string) (string, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return "", nil
	}
	t, err := time.Parse(models.ClockLayout, raw)
	if err != nil {
		return "", invalidParam(name, raw)
	}
	return t.Format(models.ClockLayout), nil
}

// parseTrainTypes reads a csv of single-letter train categories
func parseTrainTypes(q url.Values, name string) ([]string, error) {
	types := csv(q.Get(name))
	for i, t := range types {
		t = strings.ToUpper(t)
		if len(t) != 1 || t[0] < 'A' || t[0] > 'Z' {
			return nil, invalidParam(name, q.Get(name))
		}
		types[i] = t
	}
	return types, nil
}

// csv splits a comma list, dropping blanks; nil when empty
func csv(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
