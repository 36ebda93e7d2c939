package httpcore

import "testing"

func TestRouterStaticBeatsParametric(t *testing.T) {
	r := NewRouter()
	if err := r.AddRoute("GET", "/users/:id", 1); err != nil {
		t.Fatal(err)
	}
	if err := r.AddRoute("GET", "/users/me", 2); err != nil {
		t.Fatal(err)
	}

	m, ok := r.Match("GET", "/users/me")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Handler != 2 {
		t.Errorf("expected static route to win, got handler %d", m.Handler)
	}
}

func TestRouterCapturesParams(t *testing.T) {
	r := NewRouter()
	if err := r.AddRoute("GET", "/users/:id/posts/:postId", 7); err != nil {
		t.Fatal(err)
	}

	m, ok := r.Match("GET", "/users/42/posts/99")
	if !ok {
		t.Fatal("expected a match")
	}
	if len(m.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(m.Params))
	}
	if m.Params[0].Name != "id" || string(m.Params[0].Value) != "42" {
		t.Errorf("unexpected first param: %+v", m.Params[0])
	}
	if m.Params[1].Name != "postId" || string(m.Params[1].Value) != "99" {
		t.Errorf("unexpected second param: %+v", m.Params[1])
	}
}

func TestRouterMoreLiteralSegmentsWins(t *testing.T) {
	r := NewRouter()
	if err := r.AddRoute("GET", "/a/:x/:y", 1); err != nil {
		t.Fatal(err)
	}
	if err := r.AddRoute("GET", "/a/:x/c", 2); err != nil {
		t.Fatal(err)
	}

	m, ok := r.Match("GET", "/a/1/c")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Handler != 2 {
		t.Errorf("expected the route with more literal segments to win, got handler %d", m.Handler)
	}
}

func TestRouterNoMatch(t *testing.T) {
	r := NewRouter()
	if err := r.AddRoute("GET", "/users/:id", 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Match("GET", "/posts/1"); ok {
		t.Error("expected no match for an unrelated path")
	}
	if _, ok := r.Match("POST", "/users/1"); ok {
		t.Error("expected no match for an unregistered method")
	}
}

func TestRouterRejectsDuplicateStaticRoute(t *testing.T) {
	r := NewRouter()
	if err := r.AddRoute("GET", "/health", 1); err != nil {
		t.Fatal(err)
	}
	if err := r.AddRoute("GET", "/health", 2); err == nil {
		t.Error("expected an error registering a duplicate static route")
	}
}
