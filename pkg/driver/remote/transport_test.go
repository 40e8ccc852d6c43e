package remote

import (
	"encoding/json"
	"testing"
)

func TestTaskPayloadShape(t *testing.T) {
	data, err := json.Marshal(task{
		TaskID:    "t1",
		ContextID: "c1",
		Action:    "navigate",
		Args:      map[string]interface{}{"url": "https://example.com"},
		ResultKey: "qscript:result:t1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"task_id", "context_id", "action", "args", "result_key"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("payload missing %q field", key)
		}
	}
}

func TestResponseDecode(t *testing.T) {
	var resp response
	raw := `{"status": "ok", "data": {"status": 200, "url": "https://example.com/"}}`
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var nav struct {
		Status int    `json:"status"`
		URL    string `json:"url"`
	}
	if err := resp.decode(&nav); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nav.Status != 200 || nav.URL != "https://example.com/" {
		t.Errorf("unexpected decode: %+v", nav)
	}
}

func TestResponseDecode_NoData(t *testing.T) {
	resp := response{Status: "ok"}
	var out struct{}
	if err := resp.decode(&out); err == nil {
		t.Fatal("expected error for missing data")
	}
}
