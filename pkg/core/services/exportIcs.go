package services

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/jakechorley/shift-mirror/internal/config"
	"github.com/jakechorley/shift-mirror/pkg/core/model"
)

// ExportICS writes a roster as an iCalendar stream, one VEVENT per shift.
// Times are emitted in UTC, the same conversion the calendar sync applies.
func ExportICS(roster *model.Roster, cfg *config.Config, w io.Writer) error {
	if roster == nil {
		return fmt.Errorf("no roster to export")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//shift-mirror//roster export//EN")

	now := time.Now()
	for _, shift := range roster.Shifts {
		event := cal.AddEvent(uuid.NewString() + "@shift-mirror")
		event.SetCreatedTime(now)
		event.SetDtStampTime(now)
		event.SetStartAt(shift.Start.UTC())
		event.SetEndAt(shift.End.UTC())
		event.SetSummary(eventSummary(cfg, shift))
		if cfg.EventLocation != "" {
			event.SetLocation(cfg.EventLocation)
		}
		if shift.Role != "" {
			event.SetDescription(shift.Role)
		}
	}

	return cal.SerializeTo(w)
}
