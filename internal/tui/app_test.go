package tui

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func TestNewAppSetsTheme(t *testing.T) {
	_ = NewApp(context.Background())

	if tview.Styles.BorderColor != AccentTeal {
		t.Fatalf("expected border color %v, got %v", AccentTeal, tview.Styles.BorderColor)
	}
	if tview.Styles.PrimaryTextColor != tcell.ColorWhite {
		t.Fatalf("expected primary text color %v, got %v", tcell.ColorWhite, tview.Styles.PrimaryTextColor)
	}
}

func TestSetRootWithTitleStylesBox(t *testing.T) {
	app := NewApp(context.Background())
	box := tview.NewBox()

	got := app.SetRootWithTitle(box, "Hello")
	if got != app {
		t.Fatalf("expected SetRootWithTitle to return app pointer")
	}
	if box.GetTitle() != " Hello " {
		t.Fatalf("title=%q; want %q", box.GetTitle(), " Hello ")
	}
	if box.GetBorderColor() != AccentTeal {
		t.Fatalf("border color=%v; want %v", box.GetBorderColor(), AccentTeal)
	}
}

func TestAppStopsWhenContextCanceled(t *testing.T) {
	stopped := make(chan struct{})
	app := &App{stopHook: func() { close(stopped) }}

	ctx, cancel := context.WithCancel(context.Background())
	stopOnDone(ctx, app)
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected app.Stop to be called after context cancellation")
	}
}

func TestUncanceledContextNoStop(t *testing.T) {
	stopped := make(chan struct{})
	app := &App{stopHook: func() { close(stopped) }}
	stopOnDone(context.Background(), app)

	select {
	case <-stopped:
		t.Fatalf("did not expect app.Stop to be called without cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilAppStopIsNoop(t *testing.T) {
	var app *App
	app.Stop()
}
