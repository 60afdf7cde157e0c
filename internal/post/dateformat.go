package post

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
)

const (
	DefaultLocale   = "pt-BR"
	DefaultLayout   = "02 de January de 2006"
	DefaultTimezone = "UTC"
)

// DateFormat controls how publication dates are rendered.
// Layout uses Go reference-time syntax with English month and weekday names,
// which are translated into Locale when formatting.
type DateFormat struct {
	Locale   string // BCP 47 tag, e.g. "pt-BR"
	Layout   string
	Timezone string // IANA zone the date is shown in
	Missing  string // shown when a record has no publication date
}

// DefaultDateFormat renders "15 de março de 2021".
var DefaultDateFormat = DateFormat{
	Locale:   DefaultLocale,
	Layout:   DefaultLayout,
	Timezone: DefaultTimezone,
}

// timestampLayouts are tried in order when parsing publication dates.
// The content API emits offsets without a colon ("+0000").
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02",
}

type dateFormatter struct {
	locale  monday.Locale
	layout  string
	loc     *time.Location
	missing string
}

var localeMatcher, supportedLocales = buildLocaleMatcher()

func buildLocaleMatcher() (language.Matcher, []monday.Locale) {
	locales := monday.ListLocales()
	tags := make([]language.Tag, 0, len(locales))
	kept := make([]monday.Locale, 0, len(locales))
	for _, l := range locales {
		tag, err := language.Parse(strings.ReplaceAll(string(l), "_", "-"))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		kept = append(kept, l)
	}
	return language.NewMatcher(tags), kept
}

// resolveLocale maps a BCP 47 tag onto the closest supported month-name table.
func resolveLocale(tag string) (monday.Locale, error) {
	parsed, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return "", fmt.Errorf("locale %q: %w", tag, err)
	}
	_, idx, conf := localeMatcher.Match(parsed)
	if conf == language.No || idx < 0 || idx >= len(supportedLocales) {
		return "", fmt.Errorf("locale %q: unsupported", tag)
	}
	return supportedLocales[idx], nil
}

func (f DateFormat) compile() (*dateFormatter, error) {
	if strings.TrimSpace(f.Layout) == "" {
		return nil, errors.New("date layout is required")
	}
	locale, err := resolveLocale(f.Locale)
	if err != nil {
		return nil, err
	}
	tz := f.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return &dateFormatter{
		locale:  locale,
		layout:  f.Layout,
		loc:     loc,
		missing: f.Missing,
	}, nil
}

func (d *dateFormatter) format(t time.Time) string {
	return monday.Format(t.In(d.loc), d.layout, d.locale)
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
