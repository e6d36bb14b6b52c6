package notify

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/types"
)

// MaxMessageLength is Telegram's limit for one message.
const MaxMessageLength = 4096

const truncatedMarker = "\n… (truncated)"

// Parse modes accepted by the Bot API.
const (
	ParseModeMarkdown   = "Markdown"
	ParseModeMarkdownV2 = "MarkdownV2"
	ParseModeHTML       = "HTML"
)

var (
	markdownEscaper   = strings.NewReplacer(`_`, `\_`, `*`, `\*`, "`", "\\`", `[`, `\[`)
	markdownV2Escaper = strings.NewReplacer(
		`\`, `\\`, `_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
		`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`, `=`, `\=`,
		`|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
	)
)

// formatter renders markup for one parse mode.
type formatter struct {
	mode string
}

func (f formatter) escape(s string) string {
	switch f.mode {
	case ParseModeMarkdown:
		return markdownEscaper.Replace(s)
	case ParseModeMarkdownV2:
		return markdownV2Escaper.Replace(s)
	case ParseModeHTML:
		return html.EscapeString(s)
	default:
		return s
	}
}

func (f formatter) bold(s string) string {
	switch f.mode {
	case ParseModeMarkdown:
		return legacyBold(s)
	case ParseModeMarkdownV2:
		return "*" + f.escape(s) + "*"
	case ParseModeHTML:
		return "<b>" + f.escape(s) + "</b>"
	default:
		return s
	}
}

// legacyBold wraps s in *...* for the legacy Markdown mode. That mode does not
// accept escapes inside an entity, so each special character is escaped
// between two bold runs.
func legacyBold(s string) string {
	var b, run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			b.WriteString("*" + run.String() + "*")
			run.Reset()
		}
	}
	for _, r := range s {
		if strings.ContainsRune("_*`[", r) {
			flush()
			b.WriteString(`\` + string(r))
			continue
		}
		run.WriteRune(r)
	}
	flush()
	return b.String()
}

// codeBlock wraps verbatim text. Backticks inside are neutralised so the
// block cannot be closed early.
func (f formatter) codeBlock(s string) string {
	switch f.mode {
	case ParseModeMarkdown:
		return "```\n" + strings.ReplaceAll(s, "`", "'") + "\n```"
	case ParseModeMarkdownV2:
		s = strings.NewReplacer(`\`, `\\`, "`", "\\`").Replace(s)
		return "```\n" + s + "\n```"
	case ParseModeHTML:
		return "<pre>" + html.EscapeString(s) + "</pre>"
	default:
		return s
	}
}

// BuildMessage renders a report for a parse mode and fits it into
// MaxMessageLength. The RAID dump is shortened first; only when the rest
// alone is too long is the message cut.
func BuildMessage(data *NotificationData, parseMode string) string {
	f := formatter{mode: parseMode}
	body := buildBody(data, f)

	r := data.Report
	if r == nil || strings.TrimSpace(r.RaidDump) == "" {
		return truncateRunes(body, MaxMessageLength)
	}

	dump := strings.TrimRight(r.RaidDump, "\n")
	full := body + "\n\n" + f.codeBlock(dump)
	if utf8.RuneCountInString(full) <= MaxMessageLength {
		return full
	}

	overhead := utf8.RuneCountInString(body + "\n\n" + f.codeBlock(""))
	budget := MaxMessageLength - overhead - utf8.RuneCountInString(truncatedMarker)
	if budget > 0 {
		// Escaping can grow the text, so shrink until the rendered block fits.
		trimmed := truncateRunesPlain(dump, budget)
		for trimmed != "" {
			candidate := body + "\n\n" + f.codeBlock(trimmed+truncatedMarker)
			if utf8.RuneCountInString(candidate) <= MaxMessageLength {
				return candidate
			}
			trimmed = truncateRunesPlain(trimmed, utf8.RuneCountInString(trimmed)*9/10)
		}
	}
	return truncateRunes(body, MaxMessageLength)
}

// RenderText renders the whole report as plain text with no length limit.
func RenderText(data *NotificationData) string {
	body := buildBody(data, formatter{})
	if data.Report != nil && strings.TrimSpace(data.Report.RaidDump) != "" {
		body += "\n\n" + strings.TrimRight(data.Report.RaidDump, "\n")
	}
	return body
}

func buildBody(data *NotificationData, f formatter) string {
	r := data.Report
	if r == nil {
		return f.escape("diskwatch: empty report")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", SeverityEmoji(r.Overall), f.bold("diskwatch "+r.Hostname), f.escape(r.Overall.String()))
	if data.Test {
		b.WriteString(f.escape("🧪 Test message, sent on request") + "\n")
	}
	if data.Recovery {
		b.WriteString(f.escape("✅ Recovered: all checks are OK again") + "\n")
	}
	if !r.GeneratedAt.IsZero() {
		b.WriteString(f.escape(r.GeneratedAt.Format("2006-01-02 15:04 MST")) + "\n")
	}

	if len(r.Devices) > 0 {
		b.WriteString("\n" + f.bold("Disks") + "\n")
		for _, d := range r.Devices {
			b.WriteString(SeverityEmoji(d.Severity) + " " + f.escape(deviceLine(d)) + "\n")
		}
	}

	writeUsage := func(title string, list []health.UsageStatus) {
		if len(list) == 0 {
			return
		}
		b.WriteString("\n" + f.bold(title) + "\n")
		for _, u := range list {
			line := fmt.Sprintf("%s %d%% (%s of %s, %s)", u.MountPoint, u.Percent,
				humanize.IBytes(u.UsedBytes), humanize.IBytes(u.TotalBytes), u.Device)
			b.WriteString(SeverityEmoji(u.Severity) + " " + f.escape(line) + "\n")
		}
	}
	writeUsage("Critical usage", r.CriticalUsage)
	writeUsage("Warning usage", r.WarningUsage)

	if len(r.Arrays) > 0 {
		b.WriteString("\n" + f.bold("RAID") + "\n")
		for _, a := range r.Arrays {
			line := a.Name
			if a.Level != "" {
				line += " " + a.Level
			}
			if a.Bitmap != "" {
				line += " [" + a.Bitmap + "]"
			}
			if len(a.Reasons) > 0 {
				line += ": " + strings.Join(a.Reasons, "; ")
			}
			b.WriteString(SeverityEmoji(a.Severity) + " " + f.escape(line) + "\n")
		}
	}

	counts := r.Counts()
	summary := fmt.Sprintf("%d critical, %d warning, %d ok",
		counts[types.SeverityCritical], counts[types.SeverityWarn], counts[types.SeverityOK])
	b.WriteString("\n" + f.escape(summary))
	return b.String()
}

func deviceLine(d health.DeviceStatus) string {
	var attrs []string
	if d.Media != "" {
		attrs = append(attrs, string(d.Media))
	}
	if d.Temperature > 0 {
		attrs = append(attrs, fmt.Sprintf("%d°C", d.Temperature))
	}
	line := d.Name
	if len(attrs) > 0 {
		line += " (" + strings.Join(attrs, ", ") + ")"
	}
	if d.Model != "" {
		line += " " + d.Model
	}
	if len(d.Reasons) > 0 {
		line += ": " + strings.Join(d.Reasons, "; ")
	}
	return line
}

// truncateRunes cuts s to at most n runes, marking the cut.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	keep := n - utf8.RuneCountInString(truncatedMarker)
	if keep < 0 {
		keep = 0
	}
	return truncateRunesPlain(s, keep) + truncatedMarker
}

func truncateRunesPlain(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
