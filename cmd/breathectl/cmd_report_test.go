package main

import (
	"bytes"
	"os"
	"testing"
)

func TestNormalizeForJQRoundTripsUint64Maps(t *testing.T) {
	doc := map[string]interface{}{
		"engine": map[string]uint64{"breaths": 42},
	}
	v, err := normalizeForJQ(doc)
	if err != nil {
		t.Fatalf("normalizeForJQ: %v", err)
	}
	top, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("top level type = %T, want map[string]interface{}", v)
	}
	engine, ok := top["engine"].(map[string]interface{})
	if !ok {
		t.Fatalf("engine type = %T, want map[string]interface{}", top["engine"])
	}
	if engine["breaths"] != float64(42) {
		t.Errorf("engine.breaths = %v, want 42", engine["breaths"])
	}
}

func TestRunJQFiltersAndPrints(t *testing.T) {
	doc := map[string]interface{}{
		"engine": map[string]uint64{"breaths": 7},
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	if err := runJQ(".engine.breaths", doc); err != nil {
		t.Fatalf("runJQ: %v", err)
	}
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)
	if got := buf.String(); got != "7\n" {
		t.Errorf("output = %q, want %q", got, "7\n")
	}
}
