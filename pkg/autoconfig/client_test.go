package autoconfig

import (
	"encoding/json"
	"testing"
)

func mustParse(t *testing.T, eventName, body string) Message {
	t.Helper()
	msg, err := ParseMessage(eventName, []byte(body))
	if err != nil {
		t.Fatalf("ParseMessage(%s): %v", eventName, err)
	}
	return msg
}

func TestClientFirstFullPutEmitsInitializedOnce(t *testing.T) {
	c := NewClient()
	body := `{"path":"/","data":{"environments":{"0123456789abcdef01234567":` + sampleWireEnvJSON(1) + `}}}`

	events, err := c.Process(mustParse(t, "put", body))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected Initialized plus one Insert, got %d", len(events))
	}
	if _, ok := events[0].(InitializedEvent); !ok {
		t.Fatalf("expected InitializedEvent first, got %T", events[0])
	}
	if _, ok := events[1].(InsertEvent); !ok {
		t.Fatalf("expected InsertEvent second, got %T", events[1])
	}

	// a second full put with the same version merges in, re-emitting
	// nothing for the unchanged environment and never re-emitting
	// Initialized
	events, err = c.Process(mustParse(t, "put", body))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events on repeat full put with unchanged version, got %d", len(events))
	}
}

func TestClientSinglePutInsertThenUpdate(t *testing.T) {
	c := NewClient()
	insertBody := `{"path":"/environments/0123456789abcdef01234567","data":` + sampleWireEnvJSON(1) + `}`
	events, err := c.Process(mustParse(t, "put", insertBody))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if _, ok := events[0].(InsertEvent); !ok {
		t.Fatalf("expected InsertEvent, got %T", events[0])
	}

	updateBody := `{"path":"/environments/0123456789abcdef01234567","data":` + sampleWireEnvJSON(2) + `}`
	events, err = c.Process(mustParse(t, "put", updateBody))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	upd, ok := events[0].(UpdateEvent)
	if !ok || upd.Previous.Version != 1 || upd.Current.Version != 2 {
		t.Fatalf("unexpected update event: %+v", events[0])
	}
}

func TestClientPutIgnoresStaleVersion(t *testing.T) {
	c := NewClient()
	id := "0123456789abcdef01234567"
	putBody := `{"path":"/environments/` + id + `","data":` + sampleWireEnvJSON(5) + `}`
	if _, err := c.Process(mustParse(t, "put", putBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	staleBody := `{"path":"/environments/` + id + `","data":` + sampleWireEnvJSON(3) + `}`
	events, err := c.Process(mustParse(t, "put", staleBody))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected stale put to be ignored, got %d events", len(events))
	}
	env, _ := c.Environment(ClientSideID(id))
	if env.Version != 5 {
		t.Fatalf("expected version to remain 5, got %d", env.Version)
	}
}

func TestClientPatchInsertsUnknownEnvironment(t *testing.T) {
	c := NewClient()
	patchBody := `{"path":"/environments/0123456789abcdef01234567","data":` + sampleWireEnvJSON(1) + `}`
	events, err := c.Process(mustParse(t, "patch", patchBody))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected patch against an unknown environment to insert it, got %d events", len(events))
	}
	if _, ok := events[0].(InsertEvent); !ok {
		t.Fatalf("expected InsertEvent, got %T", events[0])
	}
}

func TestClientDeleteRemovesEnvironment(t *testing.T) {
	c := NewClient()
	id := "0123456789abcdef01234567"
	putBody := `{"path":"/environments/` + id + `","data":` + sampleWireEnvJSON(1) + `}`
	if _, err := c.Process(mustParse(t, "put", putBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	deleteBody := `{"path":"/environments/` + id + `","version":2}`
	events, err := c.Process(mustParse(t, "delete", deleteBody))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 delete event, got %d", len(events))
	}
	if _, ok := events[0].(DeleteEvent); !ok {
		t.Fatalf("expected DeleteEvent, got %T", events[0])
	}
	if _, exists := c.Environment(ClientSideID(id)); exists {
		t.Fatalf("expected environment to be removed from the cache")
	}
}

func TestClientDeleteIgnoresStaleVersion(t *testing.T) {
	c := NewClient()
	id := "0123456789abcdef01234567"
	putBody := `{"path":"/environments/` + id + `","data":` + sampleWireEnvJSON(5) + `}`
	if _, err := c.Process(mustParse(t, "put", putBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	deleteBody := `{"path":"/environments/` + id + `","version":2}`
	events, err := c.Process(mustParse(t, "delete", deleteBody))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected stale delete to be ignored, got %d events", len(events))
	}
	if _, exists := c.Environment(ClientSideID(id)); !exists {
		t.Fatalf("expected environment to remain cached")
	}
}

func TestClientReconnectPreservesCacheAndNeverReinitializes(t *testing.T) {
	c := NewClient()
	body := `{"path":"/","data":{"environments":{"0123456789abcdef01234567":` + sampleWireEnvJSON(1) + `}}}`
	if _, err := c.Process(mustParse(t, "put", body)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	events, err := c.Process(mustParse(t, "reconnect", "{}"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected reconnect to emit nothing, got %d events", len(events))
	}
	if len(c.EnvironmentsByProjectKey("my-project")) != 1 {
		t.Fatalf("expected cache to survive reconnect")
	}

	// The post-reconnect snapshot merges against what's already cached
	// rather than re-initializing: same version is a no-op, and
	// Initialized never fires a second time.
	events, err = c.Process(mustParse(t, "put", body))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events merging an unchanged snapshot after reconnect, got %d events", len(events))
	}

	newerBody := `{"path":"/","data":{"environments":{"0123456789abcdef01234567":` + sampleWireEnvJSON(2) + `}}}`
	events, err = c.Process(mustParse(t, "put", newerBody))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 update event merging a newer snapshot after reconnect, got %d", len(events))
	}
	if _, ok := events[0].(UpdateEvent); !ok {
		t.Fatalf("expected UpdateEvent, got %T", events[0])
	}
}

func TestClientLoadEnvironmentsDoesNotEmit(t *testing.T) {
	c := NewClient()
	env, err := environmentFromWire("0123456789abcdef01234567", mustWireEnv(t, 1))
	if err != nil {
		t.Fatalf("environmentFromWire: %v", err)
	}
	c.LoadEnvironments([]Environment{env})
	if len(c.EnvironmentsByProjectKey("my-project")) != 1 {
		t.Fatalf("expected seeded environment to be queryable")
	}
}

func mustWireEnv(t *testing.T, version int) wireEnvironment {
	t.Helper()
	var we wireEnvironment
	if err := json.Unmarshal([]byte(sampleWireEnvJSON(version)), &we); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return we
}
