// Package models holds the values that flow through a tripflow run: the
// work unit being processed, the raw and clean batches, the partition key
// they map to and the report handed back to the caller.
package models

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FirstPublishedYear is the first year the trip-record dataset covers.
const FirstPublishedYear = 2009

// WorkUnit identifies one month of source data. It is immutable.
type WorkUnit struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewWorkUnit returns a validated work unit. minYear <= 0 means
// FirstPublishedYear; the upper bound is the current year.
func NewWorkUnit(year, month, minYear int) (WorkUnit, error) {
	u := WorkUnit{Year: year, Month: month}
	return u, u.Validate(minYear, time.Now().Year())
}

// Validate checks the month and the year range [minYear, maxYear].
func (u WorkUnit) Validate(minYear, maxYear int) error {
	if minYear <= 0 {
		minYear = FirstPublishedYear
	}
	if u.Month < 1 || u.Month > 12 {
		return fmt.Errorf("month %d out of range [1-12]", u.Month)
	}
	if u.Year < minYear || u.Year > maxYear {
		return fmt.Errorf("year %d out of range [%d-%d]", u.Year, minYear, maxYear)
	}
	return nil
}

// String renders the unit as YYYY-MM.
func (u WorkUnit) String() string {
	return fmt.Sprintf("%04d-%02d", u.Year, u.Month)
}

// Contains reports whether t falls in the unit's calendar month. Year and
// month are compared together.
func (u WorkUnit) Contains(t time.Time) bool {
	return t.Year() == u.Year && int(t.Month()) == u.Month
}

// Key returns the partition key the unit writes to.
func (u WorkUnit) Key() PartitionKey {
	return PartitionKey{Year: int32(u.Year), Month: int32(u.Month)}
}

// PartitionKey is the (year, month) pair a partition directory represents.
type PartitionKey struct {
	Year  int32
	Month int32
}

// Dir returns the relative partition directory, year=<Y>/month=<M>. The
// layout is read in place by downstream query engines and must stay stable.
func (k PartitionKey) Dir() string {
	return filepath.Join(fmt.Sprintf("year=%d", k.Year), fmt.Sprintf("month=%d", k.Month))
}

// SlashDir is Dir with forward slashes, for object storage keys.
func (k PartitionKey) SlashDir() string {
	return fmt.Sprintf("year=%d/month=%d", k.Year, k.Month)
}

// Path joins the partition directory onto root.
func (k PartitionKey) Path(root string) string {
	return filepath.Join(root, k.Dir())
}

func (k PartitionKey) String() string {
	return k.SlashDir()
}

// Less orders keys chronologically.
func (k PartitionKey) Less(o PartitionKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// ExpandUnits builds the sorted, de-duplicated cross product of years and
// months.
func ExpandUnits(years, months []int) []WorkUnit {
	seen := make(map[WorkUnit]struct{}, len(years)*len(months))
	units := make([]WorkUnit, 0, len(years)*len(months))
	for _, y := range years {
		for _, m := range months {
			u := WorkUnit{Year: y, Month: m}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			units = append(units, u)
		}
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Year != units[j].Year {
			return units[i].Year < units[j].Year
		}
		return units[i].Month < units[j].Month
	})
	return units
}

// ExpandRange combines explicit values and an optional "start-end" range
// into a sorted, de-duplicated list bounded by [minVal, maxVal].
func ExpandRange(values []int, rangeStr string, minVal, maxVal int) ([]int, error) {
	set := make(map[int]struct{})

	for _, v := range values {
		if v < minVal || v > maxVal {
			return nil, fmt.Errorf("value %d out of bounds [%d-%d]", v, minVal, maxVal)
		}
		set[v] = struct{}{}
	}

	if rangeStr != "" {
		lo, hi, ok := strings.Cut(rangeStr, "-")
		start, errStart := strconv.Atoi(strings.TrimSpace(lo))
		end, errEnd := strconv.Atoi(strings.TrimSpace(hi))
		if !ok || errStart != nil || errEnd != nil {
			return nil, fmt.Errorf("invalid range format %q, use start-end", rangeStr)
		}
		if start > end || start < minVal || end > maxVal {
			return nil, fmt.Errorf("range %q out of bounds [%d-%d]", rangeStr, minVal, maxVal)
		}
		for v := start; v <= end; v++ {
			set[v] = struct{}{}
		}
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no values provided")
	}

	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}
