package ctl

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func runCommand(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cfg := &Config{}
	root := buildRootCmd(cfg, &buf)
	root.SetArgs(append([]string{"--server", serverURL}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestModelsCommandJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	out, err := runCommand(t, srv.URL, "models", "--json")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out, `"a.onnx"`) {
		t.Fatalf("output missing model id: %s", out)
	}
}

func TestModelsCommandDetail(t *testing.T) {
	srv, _ := newTestServer(t)
	out, err := runCommand(t, srv.URL, "models", "a.onnx")
	if err != nil {
		t.Fatalf("models detail: %v", err)
	}
	if !strings.Contains(out, `"ready"`) {
		t.Fatalf("output missing state: %s", out)
	}
}

func TestStatusCommandRendered(t *testing.T) {
	srv, _ := newTestServer(t)
	out, err := runCommand(t, srv.URL, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "onnxd status") {
		t.Fatalf("output missing title: %s", out)
	}
}

func TestEvalCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	out, err := runCommand(t, srv.URL, "eval", "--model", "a.onnx", "--values", "1,2,3")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !strings.Contains(out, `"rows": 1`) {
		t.Fatalf("output missing rows: %s", out)
	}
}

func TestEvalCommandRequiresValues(t *testing.T) {
	srv, _ := newTestServer(t)
	if _, err := runCommand(t, srv.URL, "eval"); err == nil {
		t.Fatalf("expected error without --values")
	}
}

func TestFetchCommandRequiresRemotePath(t *testing.T) {
	srv, _ := newTestServer(t)
	if _, err := runCommand(t, srv.URL, "fetch", "a.onnx"); err == nil {
		t.Fatalf("expected error without --remote-path")
	}
}

func TestFetchCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	out, err := runCommand(t, srv.URL, "fetch", "a.onnx", "--remote-path", "A/B", "--timestamp", "150")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(out, `"valid_from": 100`) {
		t.Fatalf("output missing validity: %s", out)
	}
}

func TestReloadAndUnloadCommands(t *testing.T) {
	srv, _ := newTestServer(t)
	out, err := runCommand(t, srv.URL, "reload", "a.onnx")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !strings.Contains(out, "reloaded a.onnx") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := runCommand(t, srv.URL, "unload", "missing"); err == nil {
		t.Fatalf("expected unload error for missing model")
	}
}

func TestParseFloats(t *testing.T) {
	got, err := parseFloats(" 1, 2.5 ,,3 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []float32{1, 2.5, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if _, err := parseFloats("1,x"); err == nil {
		t.Fatalf("expected error for non-numeric value")
	}
	if got, _ := parseFloats(""); got != nil {
		t.Fatalf("empty input should yield nil, got %v", got)
	}
}

func TestUnknownCommandFails(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Timeout: time.Second}
	root := buildRootCmd(cfg, &buf)
	root.SetArgs([]string{"bogus"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
