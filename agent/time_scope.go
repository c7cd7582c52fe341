package agent

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ledgerchat/dataset"
)

// monthLabels maps month tokens to human month names.
var monthLabels = map[string]string{
	"M01": "January",
	"M02": "February",
	"M03": "March",
	"M04": "April",
	"M05": "May",
	"M06": "June",
	"M07": "July",
	"M08": "August",
	"M09": "September",
	"M10": "October",
	"M11": "November",
	"M12": "December",
}

// resolveRelativeTimeScope canonicalizes the entities' time scope in place:
// a recognized relative period becomes an exact token against now, then
// exact precedence applies (month > quarter > year, the others cleared).
// An exact mode with no concrete value downgrades to none. A resolved exact
// scope clears any pending clarification, since a concrete time answers any
// "which period" ambiguity.
func resolveRelativeTimeScope(entities *ExtractedEntities, now time.Time) {
	ts := &entities.TimeScope

	relative := strings.ToLower(strings.TrimSpace(ts.RelativePeriod))
	if relative != "" {
		year, month := now.Year(), int(now.Month())
		switch relative {
		case "current_year":
			setExactYear(ts, fmt.Sprintf("%d", year))
		case "last_year":
			setExactYear(ts, fmt.Sprintf("%d", year-1))
		case "next_year":
			setExactYear(ts, fmt.Sprintf("%d", year+1))
		case "current_quarter", "last_quarter", "next_quarter":
			quarter := ((month - 1) / 3) + 1
			switch relative {
			case "last_quarter":
				quarter--
				if quarter == 0 {
					quarter = 4
					year--
				}
			case "next_quarter":
				quarter++
				if quarter == 5 {
					quarter = 1
					year++
				}
			}
			setExactQuarter(ts, fmt.Sprintf("%d-Q%d", year, quarter))
		case "current_month", "last_month", "next_month":
			switch relative {
			case "last_month":
				month--
				if month == 0 {
					month = 12
					year--
				}
			case "next_month":
				month++
				if month == 13 {
					month = 1
					year++
				}
			}
			setExactMonth(ts, fmt.Sprintf("%d-M%02d", year, month))
		}
	}

	month := strings.TrimSpace(ts.Month)
	quarter := strings.TrimSpace(ts.Quarter)
	year := strings.TrimSpace(ts.Year)
	switch {
	case month != "":
		setExactMonth(ts, month)
	case quarter != "":
		setExactQuarter(ts, quarter)
	case year != "":
		setExactYear(ts, year)
	case ts.Mode == "exact":
		ts.Mode = "none"
		ts.RelativePeriod = ""
	}

	if ts.Mode == "exact" {
		entities.NeedsClarification = false
		entities.ClarificationPrompt = ""
	}
}

func setExactMonth(ts *TimeScope, month string) {
	*ts = TimeScope{Mode: "exact", Month: month}
}

func setExactQuarter(ts *TimeScope, quarter string) {
	*ts = TimeScope{Mode: "exact", Quarter: quarter}
}

func setExactYear(ts *TimeScope, year string) {
	*ts = TimeScope{Mode: "exact", Year: year}
}

// formatTimeScopeRequest renders an exact time scope as a human phrase, or
// "" when nothing concrete was requested.
func formatTimeScopeRequest(ts TimeScope) string {
	if ts.Mode != "exact" {
		return ""
	}
	switch {
	case strings.TrimSpace(ts.Month) != "":
		return "month " + formatMonthTokens(strings.TrimSpace(ts.Month))
	case strings.TrimSpace(ts.Quarter) != "":
		return "quarter " + strings.TrimSpace(ts.Quarter)
	case strings.TrimSpace(ts.Year) != "":
		return "year " + strings.TrimSpace(ts.Year)
	}
	return ""
}

// formatAvailableTimeRange renders the dataset's known time coverage at the
// finest granularity available, or "" when no range is profiled.
func formatAvailableTimeRange(profile *dataset.Profile) string {
	if profile == nil {
		return ""
	}
	if profile.MinMonth != "" && profile.MaxMonth != "" {
		return fmt.Sprintf("from %s to %s", formatMonthTokens(profile.MinMonth), formatMonthTokens(profile.MaxMonth))
	}
	if profile.MinQuarter != "" && profile.MaxQuarter != "" {
		return fmt.Sprintf("from %s to %s", profile.MinQuarter, profile.MaxQuarter)
	}
	if profile.MinYear != "" && profile.MaxYear != "" {
		return fmt.Sprintf("from %s to %s", profile.MinYear, profile.MaxYear)
	}
	return ""
}

// timeRangeNotPresentAnswer builds the specific out-of-range message when
// both a concrete request and a known dataset range can be formatted.
func timeRangeNotPresentAnswer(entities *ExtractedEntities, profile *dataset.Profile) string {
	if entities == nil {
		return ""
	}
	requested := formatTimeScopeRequest(entities.TimeScope)
	available := formatAvailableTimeRange(profile)
	if requested == "" || available == "" {
		return ""
	}
	return fmt.Sprintf("You are asking for information in %s, but the information I have is %s.", requested, available)
}

var (
	yearMonthTokenRe = regexp.MustCompile(`\b(\d{4})-(M\d{2})\b`)
	monthTokenRe     = regexp.MustCompile(`\b(M\d{2})\b`)
)

// formatMonthTokens converts month tokens like 2025-M01 into readable month
// names anywhere in the text.
func formatMonthTokens(text string) string {
	formatted := yearMonthTokenRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := yearMonthTokenRe.FindStringSubmatch(match)
		name, ok := monthLabels[groups[2]]
		if !ok {
			return match
		}
		return name + " " + groups[1]
	})
	return monthTokenRe.ReplaceAllStringFunc(formatted, func(match string) string {
		if name, ok := monthLabels[match]; ok {
			return name
		}
		return match
	})
}
