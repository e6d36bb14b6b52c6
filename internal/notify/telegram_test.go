package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/logging"
	"github.com/tis24dev/diskwatch/internal/types"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

const validToken = "123456:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdef"

func quietLogger() *logging.Logger {
	logger := logging.New(types.LogLevelDebug, false)
	logger.SetOutput(io.Discard)
	return logger
}

func sampleReport() *health.Report {
	return health.Evaluate(health.Input{
		Hostname:    "nas",
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Devices: health.Observations{
			"sda": {Name: "sda", Media: types.MediaHDD, Readable: true, HealthPassed: true, Temperature: 36, Pending: 3},
			"sdb": {Name: "sdb", Media: types.MediaSSD, Readable: true, HealthPassed: true, Temperature: 40},
		},
		Mounts: []health.MountUsage{
			{Device: "/dev/sda1", MountPoint: "/srv/media_library", Percent: 91, UsedBytes: 91 << 30, TotalBytes: 100 << 30},
		},
		Arrays:   []health.RaidArray{{Name: "md0", Level: "raid1", Bitmap: "U_"}},
		RaidDump: "md0 : active raid1 sda1[0]\n      100 blocks [2/1] [U_]",
	}, health.DefaultThresholds())
}

func TestTelegramIsEnabled(t *testing.T) {
	logger := quietLogger()
	tests := []struct {
		name string
		cfg  TelegramConfig
		want bool
	}{
		{"disabled", TelegramConfig{Enabled: false, BotToken: validToken, ChatID: "1"}, false},
		{"missing token", TelegramConfig{Enabled: true, ChatID: "1"}, false},
		{"missing chat", TelegramConfig{Enabled: true, BotToken: validToken}, false},
		{"bad token", TelegramConfig{Enabled: true, BotToken: "abc", ChatID: "1"}, false},
		{"bad chat", TelegramConfig{Enabled: true, BotToken: validToken, ChatID: "chat"}, false},
		{"numeric chat", TelegramConfig{Enabled: true, BotToken: validToken, ChatID: "-100123"}, true},
		{"channel chat", TelegramConfig{Enabled: true, BotToken: validToken, ChatID: "@homelab_alerts"}, true},
	}
	for _, tt := range tests {
		n := NewTelegramNotifier(tt.cfg, logger)
		if got := n.IsEnabled(); got != tt.want {
			t.Errorf("%s: IsEnabled() = %v, want %v", tt.name, got, tt.want)
		}
	}
	if NewTelegramNotifier(TelegramConfig{}, logger).Name() != "Telegram" {
		t.Error("unexpected notifier name")
	}
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotForm = r.PostForm
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1}}`)
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramConfig{
		Enabled:  true,
		BotToken: validToken,
		ChatID:   "42",
		APIURL:   server.URL + "/",
	}, quietLogger())

	res, err := n.Send(context.Background(), &NotificationData{Report: sampleReport()})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !res.Success || res.Error != nil || res.Method != "telegram" {
		t.Fatalf("result = %+v", res)
	}
	if gotPath != "/bot"+validToken+"/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotForm.Get("chat_id") != "42" || gotForm.Get("parse_mode") != "Markdown" {
		t.Errorf("form = %v", gotForm)
	}
	text := gotForm.Get("text")
	for _, want := range []string{"nas", "CRITICAL", "pending sectors 3", `/srv/media\_library 91%`, "```"} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q:\n%s", want, text)
		}
	}
}

func TestTelegramSendFailures(t *testing.T) {
	tests := []struct {
		name    string
		rt      roundTripperFunc
		wantErr string
		status  int
	}{
		{
			name: "api error description",
			rt: func(*http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusBadRequest,
					Body:       io.NopCloser(strings.NewReader(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`)),
					Header:     make(http.Header),
				}, nil
			},
			wantErr: "can't parse entities",
			status:  http.StatusBadRequest,
		},
		{
			name: "plain body",
			rt: func(*http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusBadGateway,
					Body:       io.NopCloser(strings.NewReader("upstream down")),
					Header:     make(http.Header),
				}, nil
			},
			wantErr: "502: upstream down",
			status:  http.StatusBadGateway,
		},
		{
			name: "network error hides token",
			rt: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("dial tcp: connection refused")
			},
			wantErr: "<token>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			n := NewTelegramNotifier(TelegramConfig{Enabled: true, BotToken: validToken, ChatID: "42"}, quietLogger())
			n.client = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
				calls++
				return tt.rt(r)
			})}

			res, err := n.Send(context.Background(), &NotificationData{Report: sampleReport()})
			if err != nil {
				t.Fatalf("Send returned error: %v", err)
			}
			if res.Success || res.Error == nil {
				t.Fatalf("result = %+v, want failure", res)
			}
			if !strings.Contains(res.Error.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", res.Error, tt.wantErr)
			}
			if strings.Contains(res.Error.Error(), validToken) {
				t.Errorf("error leaks token: %v", res.Error)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want exactly one attempt", calls)
			}
			if tt.status != 0 && res.Metadata["http_status"] != tt.status {
				t.Errorf("http_status = %v", res.Metadata["http_status"])
			}
		})
	}
}

func TestTelegramSendNotConfigured(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{Enabled: true}, quietLogger())
	n.client = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected without credentials")
		return nil, nil
	})}

	res, err := n.Send(context.Background(), &NotificationData{Report: sampleReport()})
	if err != nil || res.Success || res.Error == nil {
		t.Fatalf("Send = %+v, %v", res, err)
	}
}

func TestTelegramSendHonoursTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramConfig{
		Enabled:  true,
		BotToken: validToken,
		ChatID:   "42",
		APIURL:   server.URL,
		Timeout:  50 * time.Millisecond,
	}, quietLogger())

	start := time.Now()
	res, _ := n.Send(context.Background(), &NotificationData{Report: sampleReport()})
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Send took %s, timeout not applied", time.Since(start))
	}
}
