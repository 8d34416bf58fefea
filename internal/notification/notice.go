package notification

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"time"

	"greenhouse-backend/internal/model"
	"greenhouse-backend/internal/schedule"
)

// ErrNotDueSoon is returned when a notice is requested for a machine that is
// neither Critical nor Overdue.
var ErrNotDueSoon = errors.New("machine is not due soon")

// Notice is a due-soon message ready to hand to a delivery channel.
type Notice struct {
	MachineID      string        `json:"machineId"`
	RecipientHint  string        `json:"recipientHint"`
	Subject        string        `json:"subject"`
	Body           string        `json:"body"`
	Band           schedule.Band `json:"status"`
	NextRepairDate time.Time     `json:"nextRepairDate"`
}

const DefaultBodyTemplate = `Machine: {{.Name}}
Location: {{.Location}}
Status: {{.Band}}
Last repair: {{.LastRepair}}
Next repair: {{.NextRepair}}
{{ if lt .RemainingDays 0 }}Overdue by {{.OverdueDays}} day(s).{{ else if eq .RemainingDays 0 }}Repair is due today.{{ else }}Repair due in {{.RemainingDays}} day(s).{{ end }}
{{ if .Parts }}Parts: {{.Parts}}
{{ end }}{{ if .VehicleNumber }}Vehicle: {{.VehicleNumber}}
{{ end }}`

type bodyData struct {
	Name          string
	Location      string
	Band          string
	LastRepair    string
	NextRepair    string
	RemainingDays int
	OverdueDays   int
	Parts         string
	VehicleNumber string
}

// Builder renders notices from a body template.
type Builder struct {
	tpl *template.Template
}

// NewBuilder parses a body template, falling back to DefaultBodyTemplate.
func NewBuilder(tpl string) (*Builder, error) {
	if tpl == "" {
		tpl = DefaultBodyTemplate
	}
	parsed, err := template.New("due-soon-notice").Parse(tpl)
	if err != nil {
		return nil, fmt.Errorf("parse notice template: %w", err)
	}
	return &Builder{tpl: parsed}, nil
}

var defaultBuilder = func() *Builder {
	b, err := NewBuilder("")
	if err != nil {
		panic(err)
	}
	return b
}()

// BuildDueSoonNotice renders a notice with the default template.
func BuildDueSoonNotice(m *model.Machine, now time.Time) (Notice, error) {
	return defaultBuilder.Build(m, now)
}

// Build returns the notice for m evaluated live at now. The same machine and
// now always produce the same notice.
func (b *Builder) Build(m *model.Machine, now time.Time) (Notice, error) {
	st, err := schedule.Live(m, now)
	if err != nil {
		return Notice{}, err
	}
	if !st.Band.DueSoon() {
		return Notice{}, fmt.Errorf("%w: %s has %d day(s) left", ErrNotDueSoon, m.Name, st.RemainingDays)
	}

	data := bodyData{
		Name:          m.Name,
		Location:      string(m.Location),
		Band:          string(st.Band),
		LastRepair:    m.LastRepairDate.Format("2006-01-02"),
		NextRepair:    st.NextRepairDate.Format("2006-01-02"),
		RemainingDays: st.RemainingDays,
		OverdueDays:   -st.RemainingDays,
		VehicleNumber: m.VehicleNumber,
	}
	for i, p := range m.Parts {
		if i > 0 {
			data.Parts += ", "
		}
		data.Parts += p
	}

	var buf bytes.Buffer
	if err := b.tpl.Execute(&buf, data); err != nil {
		return Notice{}, fmt.Errorf("render notice for machine %s: %w", m.ID, err)
	}

	return Notice{
		MachineID:      m.ID,
		RecipientHint:  m.CreatedBy,
		Subject:        subjectFor(m.Name, st),
		Body:           buf.String(),
		Band:           st.Band,
		NextRepairDate: st.NextRepairDate,
	}, nil
}

func subjectFor(name string, st schedule.Status) string {
	switch {
	case st.RemainingDays < 0:
		return fmt.Sprintf("[%s] %s repair was due on %s", st.Band, name, st.NextRepairDate.Format("2006-01-02"))
	case st.RemainingDays == 0:
		return fmt.Sprintf("[%s] %s repair is due today", st.Band, name)
	default:
		return fmt.Sprintf("[%s] %s repair due in %d day(s)", st.Band, name, st.RemainingDays)
	}
}
