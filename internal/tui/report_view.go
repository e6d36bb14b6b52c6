package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/types"
)

var (
	deviceHeaders = []string{"Device", "Media", "Model", "Temp", "Realloc", "Pending", "Uncorr", "Status", "Reasons"}
	usageHeaders  = []string{"Mount", "Device", "FS", "Used", "Size", "Use%", "Status"}
)

// ReportView is the read-only screen shown by --view.
type ReportView struct {
	app     *App
	root    *tview.Flex
	header  *tview.TextView
	devices *tview.Table
	usage   *tview.Table
	raid    *tview.TextView

	focusable []tview.Primitive
	focusIdx  int
}

// NewReportView builds the screen for a report.
func NewReportView(app *App, r *health.Report) *ReportView {
	v := &ReportView{
		app:     app,
		header:  tview.NewTextView().SetDynamicColors(true),
		devices: newTable(" Disks "),
		usage:   newTable(" Filesystems "),
		raid:    tview.NewTextView().SetScrollable(true).SetWrap(false),
	}
	v.raid.SetBorder(true).SetTitle(" RAID ")

	v.fillHeader(r)
	v.fillDevices(r)
	v.fillUsage(r)
	v.fillRaid(r)

	footer := tview.NewTextView().SetDynamicColors(true).
		SetText("[gray]Tab[-] switch panel   [gray]↑/↓[-] scroll   [gray]q/Esc[-] quit")

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.header, 2, 0, false).
		AddItem(v.devices, 0, 3, true).
		AddItem(v.usage, 0, 2, false).
		AddItem(v.raid, 0, 2, false).
		AddItem(footer, 1, 0, false)
	v.root.SetInputCapture(v.handleKey)
	v.focusable = []tview.Primitive{v.devices, v.usage, v.raid}
	return v
}

// Root returns the primitive to install as application root.
func (v *ReportView) Root() tview.Primitive {
	return v.root
}

// Show runs the viewer until the user quits or ctx is canceled.
func Show(ctx context.Context, r *health.Report) error {
	app := NewApp(ctx)
	view := NewReportView(app, r)
	app.SetRoot(view.Root(), true).SetFocus(view.devices)
	return app.Run()
}

func newTable(title string) *tview.Table {
	t := tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false).
		SetSeparator(' ')
	t.SetBorder(true).SetTitle(title)
	return t
}

func headerCell(text string) *tview.TableCell {
	return tview.NewTableCell(text).
		SetTextColor(AccentTeal).
		SetAttributes(tcell.AttrBold).
		SetSelectable(false)
}

func textCell(text string) *tview.TableCell {
	return tview.NewTableCell(tview.Escape(text))
}

func (v *ReportView) fillHeader(r *health.Report) {
	if r == nil {
		v.header.SetText("No report")
		return
	}
	color := fmt.Sprintf("#%06x", SeverityColor(r.Overall).Hex())
	counts := r.Counts()
	text := fmt.Sprintf("[::b]diskwatch %s[::-]   overall [%s::b]%s %s[-::-]   %d critical, %d warning, %d ok",
		tview.Escape(r.Hostname), color, SeveritySymbol(r.Overall), SeverityLabel(r.Overall),
		counts[types.SeverityCritical], counts[types.SeverityWarn], counts[types.SeverityOK])
	if !r.GeneratedAt.IsZero() {
		text += "\n[gray]" + r.GeneratedAt.Format("2006-01-02 15:04:05 MST") + "[-]"
	}
	v.header.SetText(text)
}

func (v *ReportView) fillDevices(r *health.Report) {
	for col, h := range deviceHeaders {
		v.devices.SetCell(0, col, headerCell(h))
	}
	if r == nil {
		return
	}
	for i, d := range r.Devices {
		row := i + 1
		temp, realloc, pending, uncorr := "-", "-", "-", "-"
		if d.Readable {
			if d.Temperature > 0 {
				temp = fmt.Sprintf("%d°C", d.Temperature)
			}
			realloc = strconv.FormatInt(d.Reallocated, 10)
			pending = strconv.FormatInt(d.Pending, 10)
			uncorr = strconv.FormatInt(d.Uncorrectable, 10)
		}
		cells := []string{d.Name, string(d.Media), d.Model, temp, realloc, pending, uncorr}
		for col, text := range cells {
			v.devices.SetCell(row, col, textCell(text))
		}
		v.devices.SetCell(row, len(cells), severityCell(d.Severity))
		v.devices.SetCell(row, len(cells)+1, textCell(strings.Join(d.Reasons, "; ")).SetExpansion(1))
	}
}

func (v *ReportView) fillUsage(r *health.Report) {
	for col, h := range usageHeaders {
		v.usage.SetCell(0, col, headerCell(h))
	}
	if r == nil {
		return
	}
	for i, u := range r.Mounts {
		row := i + 1
		cells := []string{
			u.MountPoint,
			u.Device,
			u.FSType,
			humanize.IBytes(u.UsedBytes),
			humanize.IBytes(u.TotalBytes),
			fmt.Sprintf("%d%%", u.Percent),
		}
		for col, text := range cells {
			v.usage.SetCell(row, col, textCell(text))
		}
		v.usage.SetCell(row, len(cells), severityCell(u.Severity))
	}
}

func (v *ReportView) fillRaid(r *health.Report) {
	if r == nil || (len(r.Arrays) == 0 && strings.TrimSpace(r.RaidDump) == "") {
		v.raid.SetText("No md arrays")
		return
	}
	var b strings.Builder
	for _, a := range r.Arrays {
		fmt.Fprintf(&b, "%s %s %s", SeveritySymbol(a.Severity), a.Name, SeverityLabel(a.Severity))
		if len(a.Reasons) > 0 {
			b.WriteString(": " + strings.Join(a.Reasons, "; "))
		}
		b.WriteString("\n")
	}
	if dump := strings.TrimRight(r.RaidDump, "\n"); dump != "" {
		b.WriteString("\n" + dump)
	}
	v.raid.SetText(b.String())
}

func severityCell(s types.Severity) *tview.TableCell {
	return tview.NewTableCell(SeveritySymbol(s) + " " + SeverityLabel(s)).
		SetTextColor(SeverityColor(s))
}

func (v *ReportView) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Key() == tcell.KeyEscape,
		event.Key() == tcell.KeyRune && (event.Rune() == 'q' || event.Rune() == 'Q'):
		v.app.Stop()
		return nil
	case event.Key() == tcell.KeyTab:
		v.cycleFocus(1)
		return nil
	case event.Key() == tcell.KeyBacktab:
		v.cycleFocus(-1)
		return nil
	}
	return event
}

func (v *ReportView) cycleFocus(step int) {
	n := len(v.focusable)
	v.focusIdx = ((v.focusIdx+step)%n + n) % n
	if v.app != nil && v.app.Application != nil {
		v.app.SetFocus(v.focusable[v.focusIdx])
	}
}
