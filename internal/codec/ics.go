package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"contentcal/internal/model"
)

// eventDuration is the synthetic length of every exported event; content
// items have no duration of their own.
const eventDuration = time.Hour

// ICS encodes content items as an iCalendar feed and reads VEVENTs back.
type ICS struct {
	opts Options
}

func NewICS(opts Options) *ICS {
	return &ICS{opts: opts.WithDefaults()}
}

// Encode produces a VCALENDAR with one VEVENT per item. All events share one
// DTSTAMP; DTEND is always DTSTART plus one hour.
func (c *ICS) Encode(items []model.ContentItem) ([]byte, error) {
	stamp := c.opts.Now()

	cal := ical.NewCalendar()
	cal.SetProductId(c.opts.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)

	for _, it := range items {
		start := it.ScheduledDate
		if start.IsZero() {
			start = stamp
		}

		ev := cal.AddEvent(fmt.Sprintf("content-%s@%s", it.ID, c.opts.UIDDomain))
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(eventDuration))
		ev.SetDtStampTime(stamp)
		ev.SetSummary(it.Title)
		ev.SetDescription(fmt.Sprintf("%s - Platform: %s - Status: %s", it.Description, it.Platform, it.Status))
		ev.AddCategory(strings.ToUpper(string(it.Platform)))
		ev.SetStatus(eventStatus(it.Status))
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf, ical.WithNewLineWindows); err != nil {
		return nil, fmt.Errorf("serialize calendar: %w", err)
	}
	return buf.Bytes(), nil
}

func eventStatus(s model.Status) ical.ObjectStatus {
	switch s {
	case model.StatusPosted:
		return ical.ObjectStatusConfirmed
	case model.StatusScheduled:
		return ical.ObjectStatusTentative
	default:
		return ical.ObjectStatusNeedsAction
	}
}

// exportedDescription matches descriptions written by Encode so the
// platform/status suffix is not duplicated on re-import.
var exportedDescription = regexp.MustCompile(`(?s)^(.*) - Platform: \S* - Status: \S*$`)

// Decode scans every VEVENT for SUMMARY, DESCRIPTION, DTSTART and
// CATEGORIES. The first occurrence of each property wins. Every decoded
// event is scheduled; events without SUMMARY get a placeholder title.
func (c *ICS) Decode(data []byte) ([]model.CandidateItem, error) {
	lines, err := unfoldLines(data)
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}

	var (
		items   []model.CandidateItem
		inEvent bool
		ev      icsEvent
		n       int
	)

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.EqualFold(line, "BEGIN:VEVENT"):
			if inEvent {
				items = append(items, c.candidate(ev, n))
			}
			n++
			inEvent = true
			ev = icsEvent{}
			continue
		case strings.EqualFold(line, "END:VEVENT"):
			if inEvent {
				items = append(items, c.candidate(ev, n))
			}
			inEvent = false
			continue
		}
		if !inEvent {
			continue
		}
		ev.take(parseContentLine(line))
	}
	// A truncated file still yields its last event.
	if inEvent {
		items = append(items, c.candidate(ev, n))
	}

	return items, nil
}

// icsEvent collects the properties of one VEVENT; nil means not seen yet.
type icsEvent struct {
	summary     *string
	description *string
	categories  *string
	dtstart     *contentLine
}

func (e *icsEvent) take(cl contentLine) {
	switch cl.name {
	case "SUMMARY":
		if e.summary == nil {
			v := ical.FromText(cl.value)
			e.summary = &v
		}
	case "DESCRIPTION":
		if e.description == nil {
			v := ical.FromText(cl.value)
			e.description = &v
		}
	case "CATEGORIES":
		if e.categories == nil {
			v := ical.FromText(cl.value)
			e.categories = &v
		}
	case "DTSTART":
		if e.dtstart == nil {
			e.dtstart = &cl
		}
	}
}

func (c *ICS) candidate(ev icsEvent, n int) model.CandidateItem {
	title := ""
	if ev.summary != nil {
		title = strings.TrimSpace(*ev.summary)
	}
	if title == "" {
		title = placeholderTitle(n)
	}

	desc := ""
	if ev.description != nil {
		desc = *ev.description
		if m := exportedDescription.FindStringSubmatch(desc); m != nil {
			desc = m[1]
		}
		desc = strings.TrimSpace(desc)
	}

	platform := model.PlatformSocial
	if ev.categories != nil {
		cat := strings.ToLower(*ev.categories)
		switch {
		case strings.Contains(cat, "email"):
			platform = model.PlatformEmail
		case strings.Contains(cat, "blog"):
			platform = model.PlatformBlog
		}
	}

	start := c.opts.Now()
	if ev.dtstart != nil {
		if t, ok := c.parseStart(*ev.dtstart); ok {
			start = t
		}
	}

	return model.CandidateItem{
		Title:         title,
		Description:   desc,
		Platform:      platform,
		Status:        model.StatusScheduled,
		ScheduledDate: start,
	}
}

// parseStart reads DTSTART in its compact forms (YYYYMMDDTHHMMSS[Z] or
// YYYYMMDD), honouring a TZID parameter, then falls back to generic
// timestamp parsing.
func (c *ICS) parseStart(cl contentLine) (time.Time, bool) {
	v := strings.TrimSpace(cl.value)
	loc := c.opts.Location
	if tzid := cl.params["TZID"]; tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	if strings.HasSuffix(v, "Z") {
		if t, err := time.Parse("20060102T150405Z", v); err == nil {
			return t, true
		}
		if t, err := time.Parse("20060102T1504Z", v); err == nil {
			return t, true
		}
	}
	for _, layout := range []string{"20060102T150405", "20060102T1504", "20060102"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return model.ParseTimestamp(v, loc)
}

// contentLine is one unfolded iCalendar line: NAME;PARAM=x:VALUE.
type contentLine struct {
	name   string
	params map[string]string
	value  string
}

// parseContentLine splits a line at the first colon outside a quoted
// parameter value. Lines without a colon yield an empty name.
func parseContentLine(line string) contentLine {
	inQuote := false
	sep := -1
	for i, r := range line {
		if r == '"' {
			inQuote = !inQuote
			continue
		}
		if r == ':' && !inQuote {
			sep = i
			break
		}
	}
	if sep < 0 {
		return contentLine{}
	}

	head := strings.Split(line[:sep], ";")
	cl := contentLine{
		name:  strings.ToUpper(strings.TrimSpace(head[0])),
		value: line[sep+1:],
	}
	for _, p := range head[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		if cl.params == nil {
			cl.params = make(map[string]string, len(head)-1)
		}
		cl.params[strings.ToUpper(strings.TrimSpace(k))] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return cl
}

// unfoldLines splits data into logical lines, joining RFC 5545 continuation
// lines (those starting with a space or tab) onto their predecessor.
func unfoldLines(data []byte) ([]string, error) {
	sc := bufio.NewScanner(bytes.NewReader(trimBOM(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var out []string
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if len(out) > 0 && line != "" && (line[0] == ' ' || line[0] == '\t') {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
