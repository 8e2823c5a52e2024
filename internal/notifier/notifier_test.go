package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/quotedprintable"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func sampleReport() *model.Report {
	at := time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC)
	return &model.Report{
		RunID:      "run-1",
		Trigger:    model.TriggerManual,
		StartedAt:  at,
		FinishedAt: at.Add(3 * time.Second),
		Evaluated:  5,
		Signals: []model.Signal{
			{
				Symbol: "RELIANCE.NS", Group: "V40", Rule: model.RuleBreakout, CurrentPrice: 101,
				Pattern: &model.Pattern{
					AnchorDate: time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC), AnchorPrice: 100,
					PeakDate: time.Date(2023, 6, 9, 0, 0, 0, 0, time.UTC), PeakPrice: 125, MovePercent: 25,
				},
				DiffPercent: 1,
			},
			{
				Symbol: "ITC.NS", Group: "H45", Rule: model.RuleMeanReversion, CurrentPrice: 101,
				Average: 147.72, DropPercent: 31.627403194150,
			},
		},
		Skips: []model.Skip{
			{Symbol: "DOWN.NS", Group: "V40", Kind: model.SkipDataUnavailable, Reason: "fetch: timeout"},
			{Symbol: "BAD.NS", Group: "H45", Kind: model.SkipInvalidInput, Reason: "dates not strictly increasing"},
		},
	}
}

func TestFormatReport(t *testing.T) {
	text := FormatReport(sampleReport(), ist)

	for _, want := range []string{
		"Run: 2025-03-14 16:30 IST | run-1",
		"Symbols evaluated: 5",
		"Signals: 2 (BREAKOUT 1, MEAN_REVERSION 1)",
		"Skipped: 2 (invalid 1)",
		"🟢 RELIANCE.NS\nGroup: V40\nStrategy: BREAKOUT (V20)",
		"Pattern Start: 2023-05-02",
		"Pattern Price: 100.00",
		"Peak Price: 125.00 (+25.00%)",
		"Difference: 1.00%",
		"🔵 ITC.NS\nGroup: H45",
		"Moving Average: 147.72",
		"Drop from MA: 31.63%",
		"Skipped:\n  V40/DOWN.NS [DATA_UNAVAILABLE] fetch: timeout\n  H45/BAD.NS [INVALID_INPUT] dates not strictly increasing\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q\n%s", want, text)
		}
	}
	if strings.Index(text, "RELIANCE.NS") > strings.Index(text, "ITC.NS") {
		t.Error("signal blocks out of order")
	}
	if strings.Index(text, "ITC.NS") > strings.Index(text, "BAD.NS") {
		t.Error("skipped symbols must follow the signal blocks")
	}
	if strings.Contains(FormatReport(&model.Report{RunID: "clean"}, ist), "Skipped:\n") {
		t.Error("a run without skips must not list any")
	}
}

func TestFormatSkipsAndStatus(t *testing.T) {
	r := sampleReport()
	skips := FormatSkips(r)
	if !strings.Contains(skips, "V40/DOWN.NS [DATA_UNAVAILABLE] fetch: timeout") {
		t.Errorf("unexpected skips text:\n%s", skips)
	}
	flaky := &model.Report{Skips: []model.Skip{{Symbol: "TCS.NS", Group: "V40", Kind: model.SkipDataUnavailable, Reason: "fetch: status 503", Retryable: true}}}
	if got := FormatSkips(flaky); !strings.Contains(got, "V40/TCS.NS [DATA_UNAVAILABLE] fetch: status 503 (retryable)") {
		t.Errorf("retryable skip not marked:\n%s", got)
	}
	if FormatSkips(&model.Report{}) != "" {
		t.Error("no skips must render empty")
	}

	status := FormatStatus(r, time.Date(2025, 3, 17, 11, 0, 0, 0, time.UTC), ist)
	if !strings.Contains(status, "Signals: 2 | Skipped: 2 | Evaluated: 5") ||
		!strings.Contains(status, "Next scheduled scan: 2025-03-17 16:30 IST") {
		t.Errorf("unexpected status:\n%s", status)
	}
	if !strings.Contains(FormatStatus(nil, time.Time{}, nil), "No run yet.") {
		t.Error("status without run")
	}
}

func TestFixedRoundsHalfAwayFromZero(t *testing.T) {
	tests := map[float64]string{2.345: "2.35", 14: "14.00", 0.005: "0.01", 19.994: "19.99"}
	for in, want := range tests {
		if got := fixed(in); got != want {
			t.Errorf("fixed(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestMayNotify(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		kolkata = ist
	}
	tests := []struct {
		name    string
		trigger model.TriggerType
		now     time.Time
		want    bool
	}{
		{"manual on saturday", model.TriggerManual, time.Date(2025, 3, 15, 6, 0, 0, 0, time.UTC), true},
		{"schedule on friday", model.TriggerSchedule, time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC), true},
		{"schedule on saturday", model.TriggerSchedule, time.Date(2025, 3, 15, 11, 0, 0, 0, time.UTC), false},
		{"schedule on sunday", model.TriggerSchedule, time.Date(2025, 3, 16, 11, 0, 0, 0, time.UTC), false},
		{"friday night UTC is saturday in IST", model.TriggerSchedule, time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC), false},
		{"sunday night UTC is monday in IST", model.TriggerSchedule, time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC), true},
		{"other on sunday", model.TriggerOther, time.Date(2025, 3, 16, 11, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MayNotify(tt.trigger, tt.now, kolkata); got != tt.want {
				t.Errorf("MayNotify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriggerFromEvent(t *testing.T) {
	tests := map[string]model.TriggerType{
		"workflow_dispatch": model.TriggerManual,
		"manual":            model.TriggerManual,
		"schedule":          model.TriggerSchedule,
		" Schedule ":        model.TriggerSchedule,
		"push":              model.TriggerOther,
		"":                  model.TriggerOther,
	}
	for in, want := range tests {
		if got := TriggerFromEvent(in); got != want {
			t.Errorf("TriggerFromEvent(%q) = %s, want %s", in, got, want)
		}
	}
}

type stubNotifier struct {
	name string
	err  error
	sent int
}

func (s *stubNotifier) Name() string { return s.name }
func (s *stubNotifier) Notify(context.Context, string, string) error {
	s.sent++
	return s.err
}

func TestMulti(t *testing.T) {
	ok := &stubNotifier{name: "ok"}
	bad := &stubNotifier{name: "bad", err: errors.New("smtp down")}

	if err := (Multi{ok}).Notify(context.Background(), "s", "b"); err != nil {
		t.Fatalf("all ok: %v", err)
	}
	err := Multi{bad, ok}.Notify(context.Background(), "s", "b")
	if !errors.Is(err, ErrDelivery) || !strings.Contains(err.Error(), "bad: smtp down") {
		t.Fatalf("expected delivery error naming the channel, got %v", err)
	}
	if ok.sent != 2 {
		t.Errorf("later notifiers must still be attempted, sent=%d", ok.sent)
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (Writer{W: &buf}).Notify(context.Background(), "Subject", "Body"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Subject\n\nBody\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestTelegramNotify_RetriesAndEscapes(t *testing.T) {
	var attempts int32
	texts := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		texts <- payload["text"]
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond

	if err := tg.Notify(context.Background(), "Alert", "A < B & C"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
	if text := <-texts; text != "<b>Alert</b>\n\nA &lt; B &amp; C" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestTelegramNotify_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond
	tg.MaxRetries = 2

	err := tg.Notify(context.Background(), "Alert", "body")
	if !errors.Is(err, ErrDelivery) || !strings.Contains(err.Error(), "all 3 retries exhausted") {
		t.Fatalf("expected exhausted delivery error, got %v", err)
	}
}

func TestSplitMessage(t *testing.T) {
	block := strings.Repeat("x", 30)
	text := strings.Join([]string{block, block, block, block}, "\n\n")
	parts := splitMessage(text, 70)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %q", len(parts), parts)
	}
	for _, p := range parts {
		if len(p) > 70 {
			t.Errorf("part too long: %d", len(p))
		}
	}
	if strings.Join(parts, "\n\n") != text {
		t.Error("splitting lost content")
	}
	if got := splitMessage("short", 70); len(got) != 1 || got[0] != "short" {
		t.Errorf("short message split: %q", got)
	}

	escaped := strings.Repeat("a", 3998) + "&amp;tail"
	parts = splitMessage(escaped, 4000)
	if len(parts) != 2 || parts[0] != strings.Repeat("a", 3998) || parts[1] != "&amp;tail" {
		t.Errorf("entity split across parts: %q ... %q", parts[0][len(parts[0])-6:], parts[len(parts)-1])
	}

	runes := strings.Repeat("é", 40)
	for _, p := range splitMessage(runes, 25) {
		if !utf8.ValidString(p) {
			t.Errorf("part is not valid UTF-8: %q", p)
		}
	}
}

// fakeSMTP serves one plaintext SMTP session and reports the DATA payload.
func fakeSMTP(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 localhost ESMTP")
		var data string
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				tp.PrintfLine("250-localhost")
				tp.PrintfLine("250 AUTH PLAIN")
			case strings.HasPrefix(cmd, "AUTH"):
				tp.PrintfLine("235 2.7.0 Authentication successful")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"), cmd == "NOOP", cmd == "RSET":
				tp.PrintfLine("250 OK")
			case cmd == "DATA":
				tp.PrintfLine("354 go ahead")
				b, _ := tp.ReadDotBytes()
				data = string(b)
				tp.PrintfLine("250 OK queued")
			case cmd == "QUIT":
				tp.PrintfLine("221 bye")
				got <- data
				return
			default:
				tp.PrintfLine("502 unknown command")
			}
		}
	}()
	return ln.Addr().String(), got
}

func TestEmailNotify(t *testing.T) {
	addr, got := fakeSMTP(t)
	_, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	e := NewEmailNotifier("localhost", port, "bot@example.com", "app-password", []string{"me@example.com", "you@example.com"})
	e.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Notify(ctx, "📈 Stock Strategy Alert", "🟢 RELIANCE.NS\nGroup: V40"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case msg := <-got:
		headers, body, ok := strings.Cut(msg, "\n\n")
		if !ok {
			t.Fatalf("message has no header/body separator:\n%s", msg)
		}
		lower := strings.ToLower(headers)
		for _, want := range []string{
			"from: <bot@example.com>",
			"me@example.com",
			"you@example.com",
			"subject: =?utf-8?q?",
			"content-type: text/plain; charset=utf-8",
		} {
			if !strings.Contains(lower, want) {
				t.Errorf("headers missing %q:\n%s", want, headers)
			}
		}
		decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
		if err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if text := strings.ReplaceAll(string(decoded), "\r\n", "\n"); !strings.Contains(text, "🟢 RELIANCE.NS\nGroup: V40") {
			t.Errorf("body = %q", text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestEmailNotify_ServerDown(t *testing.T) {
	e := NewEmailNotifier("localhost", 465, "bot@example.com", "", []string{"me@example.com"})
	e.Dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	if err := e.Notify(context.Background(), "s", "b"); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

func TestEmailNotify_NotConfigured(t *testing.T) {
	e := NewEmailNotifier("localhost", 465, "", "", nil)
	if err := e.Notify(context.Background(), "s", "b"); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}
