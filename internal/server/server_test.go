package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/agent"
)

func testConfig(t *testing.T) *Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Game.Seed = 42
	cfg.Game.TurnDelayMs = 1
	cfg.Game.AgentTimeoutMs = 5000
	cfg.Game.HistoryDir = t.TempDir()
	cfg.Game.StreamRetention = 1 << 16
	cfg.Players = []PlayerConfig{
		{Name: "alice", Strategy: agent.StrategyHeuristic},
		{Name: "bob", Strategy: agent.StrategyHeuristic},
		{Name: "carol", Strategy: agent.StrategyRandom},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()

	srv := NewServer(cfg, zerolog.Nop())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (int, CommandResult) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	var result CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.StatusCode, result
}

func resultData(t *testing.T, result CommandResult) map[string]any {
	t.Helper()
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("result data = %T, want object", result.Data)
	}
	return data
}

func errorCode(result CommandResult) string {
	if result.Error == nil {
		return ""
	}
	return result.Error.Code
}

func createGame(t *testing.T, ts *httptest.Server, req CreateGameRequest) string {
	t.Helper()

	status, result := doJSON(t, http.MethodPost, ts.URL+"/api/games", req)
	if status != http.StatusCreated {
		t.Fatalf("create game returned %d (%s)", status, errorCode(result))
	}
	id, _ := resultData(t, result)["game_id"].(string)
	if id == "" {
		t.Fatal("create game response missing game_id")
	}
	return id
}

func advanceGame(t *testing.T, ts *httptest.Server, id string) map[string]any {
	t.Helper()

	status, result := doJSON(t, http.MethodPost, ts.URL+"/api/games/"+id+"/advance", nil)
	if status != http.StatusOK {
		t.Fatalf("advance returned %d (%s)", status, errorCode(result))
	}
	return resultData(t, result)
}

// readSSERecords scans data frames off an event stream until n
// records have arrived.
func readSSERecords(t *testing.T, body io.Reader, n int) []map[string]any {
	t.Helper()

	records := make([]map[string]any, 0, n)
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &record); err != nil {
			t.Fatalf("bad record %q: %v", line, err)
		}
		records = append(records, record)
		if len(records) == n {
			return records
		}
	}
	t.Fatalf("stream ended after %d of %d records: %v", len(records), n, scanner.Err())
	return nil
}

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }

func TestHealth(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("body = %q, want OK", body)
	}
}

func TestCreateGameManual(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	status, result := doJSON(t, http.MethodPost, ts.URL+"/api/games",
		CreateGameRequest{ID: "friday-night", Auto: boolPtr(false)})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}
	data := resultData(t, result)
	if data["game_id"] != "friday-night" {
		t.Errorf("game_id = %v, want friday-night", data["game_id"])
	}
	if data["auto"] != false {
		t.Errorf("auto = %v, want false", data["auto"])
	}
	players, ok := data["players"].([]any)
	if !ok || len(players) != 3 {
		t.Errorf("players = %v, want 3 entries", data["players"])
	}

	// The ID stays taken while the first game is hosted
	status, result = doJSON(t, http.MethodPost, ts.URL+"/api/games",
		CreateGameRequest{ID: "friday-night", Auto: boolPtr(false)})
	if status != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", status)
	}
	if errorCode(result) != "game_exists" {
		t.Errorf("duplicate error = %q, want game_exists", errorCode(result))
	}
}

func TestCreateGameGeneratesID(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	id := createGame(t, ts, CreateGameRequest{Auto: boolPtr(false)})
	if len(id) != 26 {
		t.Errorf("generated id = %q, want 26 chars", id)
	}
}

func TestCreateGameRejectsUnsafeID(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	for _, id := range []string{"../../etc/passwd", "Friday Night", strings.Repeat("a", 65)} {
		status, result := doJSON(t, http.MethodPost, ts.URL+"/api/games", CreateGameRequest{ID: id})
		if status != http.StatusBadRequest {
			t.Errorf("id %q: status = %d, want 400", id, status)
		}
		if errorCode(result) != "invalid_game_id" {
			t.Errorf("id %q: error = %q, want invalid_game_id", id, errorCode(result))
		}
	}
}

func TestAdvanceStepsManualGame(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := createGame(t, ts, CreateGameRequest{ID: "manual-1", Auto: boolPtr(false)})

	// Turn 1 is pending after the deal; each step applies one transition.
	for i := 0; i < 3; i++ {
		data := advanceGame(t, ts, id)
		if want := float64(i + 2); data["turn_number"] != want {
			t.Errorf("advance %d: turn_number = %v, want %v", i+1, data["turn_number"], want)
		}
		if data["phase"] != "playing" {
			t.Errorf("advance %d: phase = %v, want playing", i+1, data["phase"])
		}
	}
}

func TestAdvanceAutoGameRefused(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := createGame(t, ts, CreateGameRequest{ID: "auto-1"})

	status, result := doJSON(t, http.MethodPost, ts.URL+"/api/games/"+id+"/advance", nil)
	if status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
	if errorCode(result) != "game_auto" {
		t.Errorf("error = %q, want game_auto", errorCode(result))
	}
}

func TestAdvanceUnknownGame(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	status, result := doJSON(t, http.MethodPost, ts.URL+"/api/games/ghost/advance", nil)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if errorCode(result) != "game_not_found" {
		t.Errorf("error = %q, want game_not_found", errorCode(result))
	}
}

func TestStateRedactsHands(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := createGame(t, ts, CreateGameRequest{ID: "state-1", Auto: boolPtr(false)})

	status, result := doJSON(t, http.MethodGet, ts.URL+"/api/games/"+id+"/state?player=alice", nil)
	if status != http.StatusOK {
		t.Fatalf("state returned %d", status)
	}
	data := resultData(t, result)
	hand, _ := data["hand"].([]any)
	if len(hand) < 17 || len(hand) > 18 {
		t.Errorf("viewer hand = %d cards, want a full deal", len(hand))
	}
	if data["current_expected_rank"] != "Ace" {
		t.Errorf("current_expected_rank = %v, want Ace", data["current_expected_rank"])
	}
	if cp, _ := data["current_player"].(string); cp == "" {
		t.Error("current_player missing")
	}

	// Spectators never see cards
	status, result = doJSON(t, http.MethodGet, ts.URL+"/api/games/"+id+"/state", nil)
	if status != http.StatusOK {
		t.Fatalf("state returned %d", status)
	}
	if _, leaked := resultData(t, result)["hand"]; leaked {
		t.Error("spectator snapshot includes a hand")
	}
}

func TestEventsReplayOverSSE(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := createGame(t, ts, CreateGameRequest{ID: "sse-1", Auto: boolPtr(false)})
	advanceGame(t, ts, id)
	advanceGame(t, ts, id)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/games/"+id+"/events?since=0", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	records := readSSERecords(t, resp.Body, 3)
	if records[0]["type"] != "game_start" {
		t.Errorf("first record type = %v, want game_start", records[0]["type"])
	}
	if records[0]["sequence"] != float64(1) {
		t.Errorf("first record sequence = %v, want 1", records[0]["sequence"])
	}
	if records[1]["type"] != "game_action" {
		t.Fatalf("second record type = %v, want game_action", records[1]["type"])
	}
	action, _ := records[1]["action"].(map[string]any)
	if action == nil || action["type"] != "turn_start" {
		t.Errorf("second record action = %v, want turn_start", records[1]["action"])
	}
}

func TestSnapshotPrimingWhenTrimmed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Game.StreamRetention = 4
	ts := newTestServer(t, cfg)

	id := createGame(t, ts, CreateGameRequest{ID: "trimmed-1", Auto: boolPtr(false)})
	for i := 0; i < 5; i++ {
		advanceGame(t, ts, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/games/"+id+"/events?since=1", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	defer resp.Body.Close()

	records := readSSERecords(t, resp.Body, 1)
	if records[0]["type"] != "snapshot" {
		t.Fatalf("first record type = %v, want snapshot", records[0]["type"])
	}
	if seq, _ := records[0]["sequence"].(float64); seq < 11 {
		t.Errorf("snapshot sequence = %v, want the live tail", records[0]["sequence"])
	}
	if records[0]["game_phase"] != "playing" {
		t.Errorf("game_phase = %v, want playing", records[0]["game_phase"])
	}
}

func TestWebSocketStreamsRecords(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := createGame(t, ts, CreateGameRequest{ID: "ws-1", Auto: boolPtr(false)})
	advanceGame(t, ts, id)

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws?game=" + id + "&since=0"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var records []map[string]any
	for len(records) < 3 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed after %d records: %v", len(records), err)
		}
		var record map[string]any
		if err := json.Unmarshal(data, &record); err != nil {
			t.Fatalf("bad record %s: %v", data, err)
		}
		records = append(records, record)
	}

	if records[0]["type"] != "game_start" {
		t.Errorf("first record type = %v, want game_start", records[0]["type"])
	}
	if records[1]["type"] != "game_action" {
		t.Fatalf("second record type = %v, want game_action", records[1]["type"])
	}
	// The opening turn has an empty pile, so the first transition is
	// always a play.
	action, _ := records[2]["action"].(map[string]any)
	if action == nil || action["type"] != "card_play" {
		t.Errorf("third record action = %v, want card_play", records[2]["action"])
	}
}

func TestWebSocketRejectsMissingGame(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	status, result := doJSON(t, http.MethodGet, ts.URL+"/ws", nil)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if errorCode(result) != "missing_game" {
		t.Errorf("error = %q, want missing_game", errorCode(result))
	}

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws?game=ghost"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("dial error = %v, want bad handshake", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("handshake status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteGame(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := createGame(t, ts, CreateGameRequest{ID: "doomed"})

	status, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/games/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("delete returned %d", status)
	}

	status, result := doJSON(t, http.MethodGet, ts.URL+"/api/games/"+id+"/state", nil)
	if status != http.StatusNotFound {
		t.Errorf("state after delete = %d, want 404", status)
	}
	if errorCode(result) != "game_not_found" {
		t.Errorf("error = %q, want game_not_found", errorCode(result))
	}

	status, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/games/"+id, nil)
	if status != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", status)
	}
}

func TestListGames(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	createGame(t, ts, CreateGameRequest{ID: "list-a", Auto: boolPtr(false)})
	createGame(t, ts, CreateGameRequest{ID: "list-b", Auto: boolPtr(false)})

	status, result := doJSON(t, http.MethodGet, ts.URL+"/api/games", nil)
	if status != http.StatusOK {
		t.Fatalf("list returned %d", status)
	}
	games, ok := result.Data.([]any)
	if !ok || len(games) != 2 {
		t.Fatalf("games = %v, want 2 entries", result.Data)
	}

	seen := make(map[string]bool)
	for _, g := range games {
		summary, ok := g.(map[string]any)
		if !ok {
			t.Fatalf("summary = %T, want object", g)
		}
		id, _ := summary["id"].(string)
		seen[id] = true
		if summary["phase"] != "playing" {
			t.Errorf("game %s: phase = %v, want playing", id, summary["phase"])
		}
		if summary["players"] != float64(3) {
			t.Errorf("game %s: players = %v, want 3", id, summary["players"])
		}
	}
	if !seen["list-a"] || !seen["list-b"] {
		t.Errorf("listed games = %v, want list-a and list-b", seen)
	}
}

func TestSeededGamesAreDeterministic(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	var snapshots []map[string]any
	for _, id := range []string{"replay-a", "replay-b"} {
		createGame(t, ts, CreateGameRequest{ID: id, Seed: int64Ptr(99), Auto: boolPtr(false)})
		for i := 0; i < 4; i++ {
			advanceGame(t, ts, id)
		}

		status, result := doJSON(t, http.MethodGet, ts.URL+"/api/games/"+id+"/state", nil)
		if status != http.StatusOK {
			t.Fatalf("state returned %d", status)
		}
		data := resultData(t, result)
		delete(data, "game_id")
		snapshots = append(snapshots, data)
	}

	if !reflect.DeepEqual(snapshots[0], snapshots[1]) {
		t.Errorf("same seed diverged:\n%v\n%v", snapshots[0], snapshots[1])
	}
}

func TestAutoGameMakesProgress(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	id := createGame(t, ts, CreateGameRequest{ID: "auto-progress"})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		status, result := doJSON(t, http.MethodGet, ts.URL+"/api/games/"+id+"/state", nil)
		if status != http.StatusOK {
			t.Fatalf("state returned %d", status)
		}
		data := resultData(t, result)
		turn, _ := data["turn_number"].(float64)
		winner, _ := data["winner"].(string)
		if turn >= 3 || winner != "" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("auto game never advanced")
}
