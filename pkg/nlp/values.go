package nlp

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/soundprediction/docgraph/pkg/types"
)

// Labels assigned to value entities.
const (
	LabelDuration = "DURATION"
	LabelQuantity = "QUANTITY"
	LabelMoney    = "MONEY"
	LabelPercent  = "PERCENT"
	LabelVersion  = "VERSION"
)

// ValueLabels lists the labels whose entities carry comparable values.
var ValueLabels = []string{LabelDuration, LabelQuantity, LabelMoney, LabelPercent, LabelVersion}

var valuePatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{LabelVersion, regexp.MustCompile(`(?i)\b(?:version\s+|v)\d+(?:\.\d+){1,3}\b`)},
	{LabelMoney, regexp.MustCompile(`(?i)(?:\$\s?\d[\d,]*(?:\.\d+)?|\b\d[\d,]*(?:\.\d+)?\s?(?:usd|dollars|eur|euros)\b)`)},
	{LabelPercent, regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:%|percent\b)`)},
	{LabelQuantity, regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:kib|mib|gib|kb|mb|gb|tb|bytes?)\b`)},
	{LabelDuration, regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:milliseconds?|ms|seconds?|secs?|s|minutes?|mins?|hours?|hrs?|h|days?|d|weeks?|wks?|months?|years?|yrs?)\b`)},
}

// ValueMatch is a value entity with the byte offset it starts at in the
// scanned text.
type ValueMatch struct {
	Entity types.Entity
	Start  int
}

// ExtractValueEntities finds durations, sizes, money, percentages and version
// numbers in text. Overlapping matches keep the earlier pattern's match.
func ExtractValueEntities(text string) []types.Entity {
	matches := FindValueMatches(text)
	out := make([]types.Entity, len(matches))
	for i, m := range matches {
		out[i] = m.Entity
	}
	return out
}

// FindValueMatches is ExtractValueEntities with offsets, in document order.
// A value written twice yields two matches.
func FindValueMatches(text string) []ValueMatch {
	type span struct{ start, end int }
	var taken []span
	overlaps := func(s, e int) bool {
		for _, t := range taken {
			if s < t.end && e > t.start {
				return true
			}
		}
		return false
	}

	var matches []ValueMatch
	for _, p := range valuePatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if overlaps(loc[0], loc[1]) {
				continue
			}
			taken = append(taken, span{loc[0], loc[1]})
			matches = append(matches, ValueMatch{Entity: types.Entity{Text: text[loc[0]:loc[1]], Label: p.label}, Start: loc[0]})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// Value is a unit-normalised quantity parsed from a value entity.
type Value struct {
	Label  string
	Amount float64
	// Unit is the base unit Amount is expressed in, e.g. "seconds" or "bytes".
	Unit string
	// Canonical is set for versions, which compare textually.
	Canonical string
}

// Equal reports whether two values denote the same quantity.
func (v Value) Equal(o Value) bool {
	if v.Label != o.Label || v.Unit != o.Unit {
		return false
	}
	if v.Label == LabelVersion {
		return v.Canonical == o.Canonical
	}
	scale := math.Max(math.Abs(v.Amount), math.Abs(o.Amount))
	return math.Abs(v.Amount-o.Amount) <= 1e-9*math.Max(scale, 1)
}

func (v Value) String() string {
	if v.Label == LabelVersion {
		return v.Canonical
	}
	return strconv.FormatFloat(v.Amount, 'f', -1, 64) + " " + v.Unit
}

var (
	numberRe  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	versionRe = regexp.MustCompile(`\d+(?:\.\d+)+`)
)

var durationUnits = map[string]float64{
	"ms": 0.001, "millisecond": 0.001, "milliseconds": 0.001,
	"s": 1, "sec": 1, "secs": 1, "second": 1, "seconds": 1,
	"min": 60, "mins": 60, "minute": 60, "minutes": 60,
	"h": 3600, "hr": 3600, "hrs": 3600, "hour": 3600, "hours": 3600,
	"d": 86400, "day": 86400, "days": 86400,
	"wk": 604800, "wks": 604800, "week": 604800, "weeks": 604800,
	"month": 2592000, "months": 2592000,
	"yr": 31536000, "yrs": 31536000, "year": 31536000, "years": 31536000,
}

var sizeUnits = map[string]float64{
	"byte": 1, "bytes": 1,
	"kb": 1 << 10, "kib": 1 << 10,
	"mb": 1 << 20, "mib": 1 << 20,
	"gb": 1 << 30, "gib": 1 << 30,
	"tb": 1 << 40,
}

// ParseValue converts a value entity into a comparable Value. Entities whose
// label is not a value label, or whose text cannot be parsed, yield ErrNotValue.
func ParseValue(e types.Entity) (Value, error) {
	text := strings.ToLower(strings.TrimSpace(e.Text))
	label := strings.ToUpper(e.Label)

	if label == LabelVersion {
		v := versionRe.FindString(text)
		if v == "" {
			return Value{}, fmt.Errorf("%w: %q", ErrNotValue, e.Text)
		}
		for strings.HasSuffix(v, ".0") && strings.Count(v, ".") > 1 {
			v = strings.TrimSuffix(v, ".0")
		}
		return Value{Label: label, Unit: "version", Canonical: v}, nil
	}

	numText := numberRe.FindString(text)
	if numText == "" {
		return Value{}, fmt.Errorf("%w: %q", ErrNotValue, e.Text)
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(numText, ",", ""), 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q", ErrNotValue, e.Text)
	}
	unit := strings.TrimSpace(strings.TrimPrefix(text[strings.Index(text, numText)+len(numText):], " "))

	switch label {
	case LabelDuration:
		mult, ok := durationUnits[unit]
		if !ok {
			return Value{}, fmt.Errorf("%w: unknown duration unit %q", ErrNotValue, unit)
		}
		return Value{Label: label, Amount: amount * mult, Unit: "seconds"}, nil
	case LabelQuantity:
		mult, ok := sizeUnits[unit]
		if !ok {
			return Value{}, fmt.Errorf("%w: unknown size unit %q", ErrNotValue, unit)
		}
		return Value{Label: label, Amount: amount * mult, Unit: "bytes"}, nil
	case LabelPercent:
		return Value{Label: label, Amount: amount, Unit: "percent"}, nil
	case LabelMoney:
		currency := "usd"
		if strings.HasPrefix(unit, "eur") {
			currency = "eur"
		}
		return Value{Label: label, Amount: amount, Unit: currency}, nil
	}
	return Value{}, fmt.Errorf("%w: label %q", ErrNotValue, e.Label)
}
