//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIntegrationArtifactLifecycle(t *testing.T) {
	if os.Getenv("VPNCERT_RUN_INTEGRATION") != "1" {
		t.Skip("set VPNCERT_RUN_INTEGRATION=1 to run integration tests")
	}

	binaryPath := strings.TrimSpace(os.Getenv("VPNCERT_BIN"))
	if binaryPath == "" {
		binaryPath = filepath.Clean("./vpncert")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		t.Fatalf("vpncert binary not found at %s: %v", binaryPath, err)
	}

	addr, err := freeLocalAddr()
	if err != nil {
		t.Fatalf("failed to choose listen address: %v", err)
	}
	baseURL := "http://" + addr
	dataDir := t.TempDir()
	configPath, err := writeConfig(dataDir, addr)
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "--config", configPath, "serve")
	var logs bytes.Buffer
	cmd.Stdout = &logs
	cmd.Stderr = &logs
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start vpncert: %v", err)
	}
	defer func() {
		cancel()
		_ = cmd.Process.Kill()
		_, _ = ioCopyDiscardAndWait(cmd)
		if t.Failed() {
			t.Logf("server logs:\n%s", logs.String())
		}
	}()

	if err := waitForHTTP(baseURL+"/api/version", 20*time.Second); err != nil {
		t.Fatalf("server did not become ready: %v", err)
	}

	token, err := login(baseURL, "admin", "vpncert")
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}

	artifact := filepath.Join(dataDir, "cache", "out", "cert.ovpn")
	status, body, err := call(http.MethodPost, baseURL+"/api/artifacts", token, map[string]any{
		"protocol":   "tcp",
		"servername": "NL#1",
		"ip_list":    []string{"1.2.3.4", "5.6.7.8"},
		"cache_path": artifact,
	})
	if err != nil || status != http.StatusOK {
		t.Fatalf("generate failed: status=%d err=%v body=%s", status, err, body)
	}
	raw, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if !strings.Contains(string(raw), "remote 1.2.3.4") || !strings.Contains(string(raw), "port 443") {
		t.Fatalf("unexpected artifact content:\n%s", raw)
	}

	status, body, err = call(http.MethodGet, baseURL+"/api/state", token, nil)
	if err != nil || status != http.StatusOK || !strings.Contains(string(body), "NL#1") {
		t.Fatalf("state failed: status=%d err=%v body=%s", status, err, body)
	}

	deleteURL := baseURL + "/api/artifacts?path=" + url.QueryEscape(artifact)
	if status, body, err = call(http.MethodDelete, deleteURL, token, nil); err != nil || status != http.StatusNoContent {
		t.Fatalf("delete failed: status=%d err=%v body=%s", status, err, body)
	}
	if status, _, err = call(http.MethodDelete, deleteURL, token, nil); err != nil || status != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got status=%d err=%v", status, err)
	}
}

func writeConfig(dir, addr string) (string, error) {
	raw := strings.Join([]string{
		"cache_dir: " + filepath.Join(dir, "cache"),
		"database: " + filepath.Join(dir, "vpncert.db"),
		"session_file: " + filepath.Join(dir, "session"),
		"listen: " + addr,
		"log_level: debug",
		"",
	}, "\n")
	path := filepath.Join(dir, "config.yaml")
	return path, os.WriteFile(path, []byte(raw), 0o600)
}

func login(baseURL, username, password string) (string, error) {
	status, body, err := call(http.MethodPost, baseURL+"/api/sessions", "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", status)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func call(method, endpoint, token string, payload any) (int, []byte, error) {
	var reader *bytes.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, buf.Bytes(), nil
}

func waitForHTTP(endpoint string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(endpoint)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", endpoint)
}

func freeLocalAddr() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

func ioCopyDiscardAndWait(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode(), err
	}
	return -1, err
}
