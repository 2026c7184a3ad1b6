package httpapi

import "testing"

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	SetMaxBodyBytes(1234)
	defer SetMaxBodyBytes(0)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestCORSDefaults(t *testing.T) {
	SetCORSOptions(true, nil, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	if got := corsOrigins(); len(got) != 1 || got[0] != "*" {
		t.Fatalf("origins=%v", got)
	}
	if got := corsMethods(); len(got) != 3 {
		t.Fatalf("methods=%v", got)
	}
	SetCORSOptions(true, []string{"http://localhost:5173"}, []string{"GET"}, []string{"Content-Type"})
	if got := corsOrigins(); got[0] != "http://localhost:5173" {
		t.Fatalf("origins=%v", got)
	}
	if got := corsHeaders(); len(got) != 1 {
		t.Fatalf("headers=%v", got)
	}
}
