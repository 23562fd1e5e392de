package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shimrun/shimrun/internal/state"
)

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewServer(t.TempDir(), nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d", resp.StatusCode)
	}
}

func TestInstances(t *testing.T) {
	root := t.TempDir()
	if _, err := state.Create(root, "inst-1", "/bundles/inst-1"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	srv := httptest.NewServer(NewServer(root, nil).Router())
	defer srv.Close()

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/instances")
		if err != nil {
			t.Fatalf("GET /instances: %v", err)
		}
		defer resp.Body.Close()

		var records []state.Record
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(records) != 1 || records[0].ID != "inst-1" {
			t.Errorf("GET /instances = %+v", records)
		}
	})

	t.Run("get existing", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/instances/inst-1")
		if err != nil {
			t.Fatalf("GET /instances/inst-1: %v", err)
		}
		defer resp.Body.Close()

		var rec state.Record
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if rec.ID != "inst-1" || rec.Status != state.Created {
			t.Errorf("GET /instances/inst-1 = %+v", rec)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/instances/ghost")
		if err != nil {
			t.Fatalf("GET /instances/ghost: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET /instances/ghost status = %d, want 404", resp.StatusCode)
		}
	})
}
