package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/types"
)

func TestBuildMessageSections(t *testing.T) {
	msg := BuildMessage(&NotificationData{Report: sampleReport(), Test: true}, ParseModeMarkdown)

	for _, want := range []string{
		"🔴 *diskwatch nas* CRITICAL",
		"Test message",
		"*Disks*",
		"🔴 sda (hdd, 36°C): pending sectors 3",
		"🟢 sdb (ssd, 40°C)",
		"*Critical usage*",
		"91 GiB of 100 GiB",
		"*RAID*",
		"md0 raid1 \\[U\\_]",
		"```\nmd0 : active raid1",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Warning usage") {
		t.Errorf("empty warning section rendered:\n%s", msg)
	}
	if strings.Contains(msg, "Recovered") {
		t.Errorf("recovery banner on a non-recovery message")
	}
}

func TestBuildMessageRecovery(t *testing.T) {
	report := health.Evaluate(health.Input{
		Hostname: "nas",
		Devices: health.Observations{
			"sda": {Name: "sda", Readable: true, HealthPassed: true, Media: types.MediaHDD},
		},
	}, health.DefaultThresholds())

	msg := BuildMessage(&NotificationData{Report: report, Recovery: true}, ParseModeMarkdown)
	if !strings.Contains(msg, "Recovered") || !strings.HasPrefix(msg, "🟢") {
		t.Fatalf("recovery message = %q", msg)
	}
	if strings.Contains(msg, "```") {
		t.Errorf("code block rendered without a RAID dump")
	}
}

func TestBuildMessageTruncatesDumpFirst(t *testing.T) {
	report := sampleReport()
	report.RaidDump = strings.Repeat("md0 : active raid1 sda1[0] sdb1[1]\n", 400)

	msg := BuildMessage(&NotificationData{Report: report}, ParseModeMarkdown)
	if n := utf8.RuneCountInString(msg); n > MaxMessageLength {
		t.Fatalf("message length = %d, limit %d", n, MaxMessageLength)
	}
	if !strings.Contains(msg, "pending sectors 3") || !strings.Contains(msg, "*RAID*") {
		t.Error("body lost while trimming the dump")
	}
	if !strings.Contains(msg, "(truncated)") || !strings.HasSuffix(msg, "```") {
		t.Errorf("dump not trimmed inside its code block: ...%s", msg[len(msg)-80:])
	}
}

func TestBuildMessageTruncatesHugeBody(t *testing.T) {
	obs := health.Observations{}
	for i := 0; i < 300; i++ {
		name := "sd" + strings.Repeat("x", i%5) + string(rune('a'+i%26)) + string(rune('a'+i/26))
		obs[name] = health.DeviceObservation{Name: name, ReadError: strings.Repeat("timeout ", 4)}
	}
	report := health.Evaluate(health.Input{Hostname: "big", Devices: obs}, health.DefaultThresholds())

	msg := BuildMessage(&NotificationData{Report: report}, ParseModeHTML)
	if n := utf8.RuneCountInString(msg); n > MaxMessageLength {
		t.Fatalf("message length = %d", n)
	}
	if !strings.HasSuffix(msg, "(truncated)") {
		t.Error("missing truncation marker")
	}
}

func TestFormatterEscaping(t *testing.T) {
	tests := []struct {
		mode string
		in   string
		want string
	}{
		{ParseModeMarkdown, "a_b*c`d[e]", "a\\_b\\*c\\`d\\[e]"},
		{ParseModeMarkdownV2, "v1.2 (x)!", "v1\\.2 \\(x\\)\\!"},
		{ParseModeHTML, "<b>&", "&lt;b&gt;&amp;"},
		{"None", "a_b", "a_b"},
	}
	for _, tt := range tests {
		if got := (formatter{mode: tt.mode}).escape(tt.in); got != tt.want {
			t.Errorf("%s escape(%q) = %q, want %q", tt.mode, tt.in, got, tt.want)
		}
	}

	bolds := []struct {
		mode string
		in   string
		want string
	}{
		{ParseModeMarkdown, "diskwatch nas", "*diskwatch nas*"},
		{ParseModeMarkdown, "diskwatch my_nas", "*diskwatch my*\\_*nas*"},
		{ParseModeMarkdown, "_edge*", "\\_*edge*\\*"},
		{ParseModeMarkdownV2, "my_nas", "*my\\_nas*"},
		{ParseModeHTML, "a<b", "<b>a&lt;b</b>"},
	}
	for _, tt := range bolds {
		if got := (formatter{mode: tt.mode}).bold(tt.in); got != tt.want {
			t.Errorf("%s bold(%q) = %q, want %q", tt.mode, tt.in, got, tt.want)
		}
	}

	if got := (formatter{mode: ParseModeMarkdown}).codeBlock("a```b"); strings.Count(got, "```") != 2 {
		t.Errorf("code block not protected: %q", got)
	}
	if got := (formatter{mode: ParseModeHTML}).codeBlock("<x>"); got != "<pre>&lt;x&gt;</pre>" {
		t.Errorf("html code block = %q", got)
	}
}

func TestRenderTextKeepsFullDump(t *testing.T) {
	report := sampleReport()
	report.RaidDump = strings.Repeat("md0 : active raid1 sda1[0] sdb1[1]\n", 400)

	text := RenderText(&NotificationData{Report: report})
	if utf8.RuneCountInString(text) <= MaxMessageLength {
		t.Fatal("plain rendering must not be truncated")
	}
	if strings.Contains(text, "```") || strings.Contains(text, "*Disks*") || strings.Contains(text, "(truncated)") {
		t.Errorf("plain rendering contains markup")
	}
	if !strings.Contains(text, "/srv/media_library 91%") {
		t.Error("plain rendering must not escape")
	}
}
