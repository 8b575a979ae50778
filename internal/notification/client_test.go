package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestNotifier(url string, retries int) Notifier {
	config := DefaultConfig(url)
	config.RetryAttempts = retries
	config.RetryDelay = 10 * time.Millisecond
	return NewNotifier(config, zerolog.New(io.Discard))
}

func validNotification() Notification {
	return Notification{
		Level:    LevelInfo,
		Action:   "ajouter",
		RecordID: "ID-RT-1",
		Message:  "Matériel ID-RT-1 ajouté",
	}
}

func TestNotification_Validate(t *testing.T) {
	tests := []struct {
		name          string
		modify        func(n *Notification)
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid notification",
			modify:      func(n *Notification) {},
			expectError: false,
		},
		{
			name:          "missing level",
			modify:        func(n *Notification) { n.Level = "" },
			expectError:   true,
			errorContains: "level is required",
		},
		{
			name:          "missing message",
			modify:        func(n *Notification) { n.Message = "" },
			expectError:   true,
			errorContains: "message is required",
		},
		{
			name:          "message too long",
			modify:        func(n *Notification) { n.Message = strings.Repeat("a", 1001) },
			expectError:   true,
			errorContains: "message too long",
		},
		{
			name:          "missing record id",
			modify:        func(n *Notification) { n.RecordID = "" },
			expectError:   true,
			errorContains: "record id is required",
		},
		{
			name:          "invalid level",
			modify:        func(n *Notification) { n.Level = "invalid" },
			expectError:   true,
			errorContains: "invalid notification level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := validNotification()
			tt.modify(&n)

			err := n.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %v", tt.errorContains, err)
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestNotificationClient_SendNotification_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("User-Agent") != Source+"/1.0" {
			t.Errorf("Expected User-Agent %s/1.0, got %s", Source, r.Header.Get("User-Agent"))
		}

		var notification Notification
		if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		if notification.RecordID != "ID-RT-1" {
			t.Errorf("Expected record id ID-RT-1, got %s", notification.RecordID)
		}
		if notification.Source != Source {
			t.Errorf("Expected source %s, got %s", Source, notification.Source)
		}
		if notification.Timestamp.IsZero() {
			t.Error("Expected timestamp to be set")
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestNotifier(server.URL, 0)
	if err := client.SendNotification(context.Background(), validNotification()); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

func TestNotificationClient_SendNotification_ServerError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
	}))
	defer server.Close()

	client := newTestNotifier(server.URL, 2)
	err := client.SendNotification(context.Background(), validNotification())
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Expected error to contain '500', got: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestNotificationClient_ClientErrorIsNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestNotifier(server.URL, 3)
	err := client.SendNotification(context.Background(), validNotification())
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("Expected a single attempt, got %d", got)
	}
}

func TestNotificationClient_SendNotification_ValidationError(t *testing.T) {
	client := newTestNotifier("http://localhost:8080", 0)

	err := client.SendNotification(context.Background(), Notification{RecordID: "ID-RT-1"})
	if err == nil {
		t.Fatal("Expected validation error but got none")
	}
	if !strings.Contains(err.Error(), "invalid notification") {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestNotificationClient_SendNotification_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestNotifier(server.URL, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := client.SendNotification(ctx, validNotification()); err == nil {
		t.Error("Expected timeout error but got none")
	}
}

func TestNotificationClient_Retry_Mechanism(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestNotifier(server.URL, 3)
	if err := client.SendNotification(context.Background(), validNotification()); err != nil {
		t.Errorf("Expected success after retries, got: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestNotificationClient_IsHealthy(t *testing.T) {
	tests := []struct {
		name           string
		serverStatus   int
		expectedHealth bool
	}{
		{"healthy service", http.StatusOK, true},
		{"client error still healthy", http.StatusBadRequest, true},
		{"server error unhealthy", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.serverStatus)
			}))
			defer server.Close()

			client := newTestNotifier(server.URL, 0)
			if healthy := client.IsHealthy(context.Background()); healthy != tt.expectedHealth {
				t.Errorf("Expected health %v, got %v", tt.expectedHealth, healthy)
			}
		})
	}
}

func TestNotificationClient_PayloadSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := DefaultConfig(server.URL)
	config.MaxPayloadSize = 100
	client := NewNotifier(config, zerolog.New(io.Discard))

	notification := validNotification()
	notification.Message = strings.Repeat("a", 200)

	err := client.SendNotification(context.Background(), notification)
	if err == nil {
		t.Fatal("Expected payload size error but got none")
	}
	if !strings.Contains(err.Error(), "payload too large") {
		t.Errorf("Expected payload size error, got: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	url := "http://example.com"
	config := DefaultConfig(url)

	if config.URL != url {
		t.Errorf("Expected URL %s, got %s", url, config.URL)
	}
	if config.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", config.Timeout)
	}
	if config.RetryAttempts != 3 {
		t.Errorf("Expected 3 retry attempts, got %d", config.RetryAttempts)
	}
	if config.MaxPayloadSize != 1024*1024 {
		t.Errorf("Expected 1MB max payload size, got %d", config.MaxPayloadSize)
	}
}
