// Package icsexport renders calendars as iCalendar (RFC 5545) documents.
package icsexport

import (
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	"github.com/example/calshare/internal/application"
)

const (
	// ProductID is written to PRODID on every exported document.
	ProductID = "-//calshare//calendar export//EN"

	uidDomain = "calshare"

	propertyEventType = ical.ComponentProperty("X-CALSHARE-TYPE")
	propertyColor     = ical.Property("X-APPLE-CALENDAR-COLOR")
)

// Exporter implements application.CalendarExporter with golang-ical.
type Exporter struct {
	productID string
}

var _ application.CalendarExporter = (*Exporter)(nil)

// NewExporter returns an exporter stamping productID, or ProductID when empty.
func NewExporter(productID string) *Exporter {
	if strings.TrimSpace(productID) == "" {
		productID = ProductID
	}
	return &Exporter{productID: productID}
}

// Export serialises calendar and events as a single VCALENDAR.
// Reminders carry a display alarm at their start. Tasks are exported as
// zero-length events tagged with X-CALSHARE-TYPE so clients without VTODO
// support still show them on the due date.
func (e *Exporter) Export(calendar application.Calendar, events []application.Event) ([]byte, error) {
	if calendar.ID == "" {
		return nil, fmt.Errorf("icsexport: calendar id is required")
	}

	cal := ical.NewCalendar()
	cal.SetProductId(e.productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(calendar.Name)
	if calendar.Color != "" {
		cal.CalendarProperties = append(cal.CalendarProperties, ical.CalendarProperty{
			BaseProperty: ical.BaseProperty{IANAToken: string(propertyColor), Value: calendar.Color},
		})
	}

	for _, event := range events {
		if event.ID == "" {
			return nil, fmt.Errorf("icsexport: event without id in calendar %s", calendar.ID)
		}
		addEvent(cal, event)
	}

	return []byte(cal.Serialize()), nil
}

func addEvent(cal *ical.Calendar, event application.Event) {
	ve := cal.AddEvent(EventUID(event.ID))
	ve.SetDtStampTime(event.UpdatedAt.UTC())
	ve.SetCreatedTime(event.CreatedAt.UTC())
	ve.SetModifiedAt(event.UpdatedAt.UTC())
	ve.SetSummary(event.Title)
	if event.Location != "" {
		ve.SetLocation(event.Location)
	}
	if event.Description != "" {
		ve.SetDescription(event.Description)
	}
	ve.SetProperty(propertyEventType, string(event.Type))

	if event.AllDay {
		ve.SetAllDayStartAt(event.Start)
		// DTEND is exclusive for all-day events.
		ve.SetAllDayEndAt(event.End.AddDate(0, 0, 1))
	} else {
		ve.SetStartAt(event.Start.UTC())
		ve.SetEndAt(event.End.UTC())
	}

	if event.Type == application.EventTypeReminder {
		alarm := ve.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger("PT0M")
		alarm.SetProperty(ical.ComponentPropertyDescription, event.Title)
	}
}

// EventUID is the globally unique UID written for an event id.
func EventUID(eventID string) string {
	return eventID + "@" + uidDomain
}
