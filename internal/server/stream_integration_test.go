package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestStreamEmitsNoteChangeEvents(t *testing.T) {
	env := newTestEnv(t)
	seedPicsNotes(t, env)
	token := env.login(t)

	streamRequest, err := http.NewRequest(http.MethodGet, env.server.URL+"/subreddits/pics/stream", http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamRequest.AddCookie(&http.Cookie{Name: testSessionCookie, Value: token})
	streamResponse, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResponse.Body.Close()
	})
	if streamResponse.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResponse.StatusCode)
	}
	if contentType := streamResponse.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected content type: %s", contentType)
	}

	addResponse := env.do(t, http.MethodPost, "/subreddits/pics/notes/troublemaker", token, `{"text":"new incident","warning_type":"none"}`)
	if addResponse.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected add-note status: %d", addResponse.StatusCode)
	}
	_ = addResponse.Body.Close()

	type eventPayload struct {
		Subreddit string `json:"subreddit"`
		User      string `json:"user"`
		Moderator string `json:"moderator"`
	}

	streamReader := bufio.NewReader(streamResponse.Body)
	currentEventType := ""
	deadline := time.After(5 * time.Second)
	type readResult struct {
		line string
		err  error
	}
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := streamReader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for realtime event")
		case result := <-resultCh:
			if result.err != nil {
				t.Fatalf("failed to read stream: %v", result.err)
			}
			line := strings.TrimSpace(result.line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			if currentEventType != RealtimeEventNoteChanged {
				continue
			}
			dataJSON := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var payload eventPayload
			if err := json.Unmarshal([]byte(dataJSON), &payload); err != nil {
				t.Fatalf("failed to decode event payload: %v", err)
			}
			if payload.Subreddit != "pics" || payload.User != "troublemaker" {
				t.Fatalf("unexpected event payload: %#v", payload)
			}
			if payload.Moderator != testModeratorName {
				t.Fatalf("expected moderator %s, got %s", testModeratorName, payload.Moderator)
			}
			return
		}
	}
}

func TestStreamRejectsMissingSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	response, err := http.Get(env.server.URL + "/subreddits/pics/stream")
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", response.StatusCode)
	}
}
