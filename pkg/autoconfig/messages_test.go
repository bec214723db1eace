package autoconfig

import (
	"strconv"
	"testing"
)

func TestParseMessagePutFullSnapshot(t *testing.T) {
	body := `{"path":"/","data":{"environments":{"0123456789abcdef01234567":` + sampleWireEnvJSON(1) + `}}}`
	msg, err := ParseMessage("put", []byte(body))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	put, ok := msg.(PutMessage)
	if !ok || put.Path != "/" || len(put.All) != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseMessagePutSingle(t *testing.T) {
	body := `{"path":"/environments/0123456789abcdef01234567","data":` + sampleWireEnvJSON(1) + `}`
	msg, err := ParseMessage("put", []byte(body))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	put, ok := msg.(PutMessage)
	if !ok || put.One == nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseMessagePatch(t *testing.T) {
	body := `{"path":"/environments/0123456789abcdef01234567","data":` + sampleWireEnvJSON(2) + `}`
	msg, err := ParseMessage("patch", []byte(body))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	patch, ok := msg.(PatchMessage)
	if !ok || patch.Env.Version != 2 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseMessageDelete(t *testing.T) {
	body := `{"path":"/environments/0123456789abcdef01234567","version":3}`
	msg, err := ParseMessage("delete", []byte(body))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	del, ok := msg.(DeleteMessage)
	if !ok || del.Version != 3 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseMessageReconnect(t *testing.T) {
	msg, err := ParseMessage("reconnect", []byte(`{}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if _, ok := msg.(ReconnectMessage); !ok {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseMessageUnknownEventName(t *testing.T) {
	if _, err := ParseMessage("bogus", []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown event name to fail")
	}
}

func sampleWireEnvJSON(version int) string {
	return `{
		"envKey": "production",
		"envName": "Production",
		"projKey": "my-project",
		"projName": "My Project",
		"mobKey": "mob-00000000-0000-0000-0000-000000000000",
		"sdkKey": {"value": "sdk-00000000-0000-0000-0000-000000000000"},
		"defaultTtl": 0,
		"secureMode": false,
		"version": ` + strconv.Itoa(version) + `
	}`
}
