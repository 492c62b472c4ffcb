package caldav

import (
	"strings"
	"time"
)

const icsTimeLayout = "20060102T150405Z"

// EventSpec describes a single calendar event to be written remotely.
// Description, Location and URL are optional and omitted when empty.
type EventSpec struct {
	UID         string
	Summary     string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	URL         string
}

// BuildICS renders the spec as an RFC5545 VCALENDAR/VEVENT document with
// CRLF line endings and UTC timestamps.
func BuildICS(spec EventSpec) string {
	return buildICS(spec, time.Now().UTC())
}

func buildICS(spec EventSpec, stamp time.Time) string {
	var b strings.Builder

	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	writeLine("BEGIN:VCALENDAR")
	writeLine("PRODID:-//Norish//CalDavClient//EN")
	writeLine("VERSION:2.0")
	writeLine("CALSCALE:GREGORIAN")
	writeLine("METHOD:PUBLISH")
	writeLine("BEGIN:VEVENT")
	writeLine("UID:" + spec.UID)
	writeLine("DTSTAMP:" + stamp.UTC().Format(icsTimeLayout))
	writeLine("DTSTART:" + spec.Start.UTC().Format(icsTimeLayout))
	writeLine("DTEND:" + spec.End.UTC().Format(icsTimeLayout))
	writeLine("SUMMARY:" + escapeText(spec.Summary))
	if spec.Description != "" {
		writeLine("DESCRIPTION:" + escapeText(spec.Description))
	}
	if spec.Location != "" {
		writeLine("LOCATION:" + escapeText(spec.Location))
	}
	if spec.URL != "" {
		writeLine("URL:" + escapeText(spec.URL))
	}
	writeLine("END:VEVENT")
	writeLine("END:VCALENDAR")

	return b.String()
}

// escapeText applies RFC5545 TEXT escaping. Backslashes must be doubled
// before the other replacements so escape markers are not re-escaped.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r\n", `\n`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\n`)
	return s
}
