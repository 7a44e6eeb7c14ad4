package response

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newContext(accept string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, engine := gin.CreateTestContext(recorder)
	engine.SetHTMLTemplate(template.Must(template.New("404.html").Parse(`<h1>{{ .Status }} {{ .Title }}</h1><p>{{ .Message }}</p>`)))
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if accept != "" {
		ctx.Request.Header.Set("Accept", accept)
	}
	return ctx, recorder
}

func TestResponseSuccess(t *testing.T) {
	ctx, recorder := newContext("application/json")

	Success(ctx, http.StatusAccepted, gin.H{"newest_version_number": 170}, gin.H{"baseline": 161})

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, recorder.Code)
	}

	var body Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if !body.Success || body.Error != nil {
		t.Fatalf("expected success=true without error, got %+v", body)
	}

	payload, ok := body.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data map, got %T", body.Data)
	}
	if payload["newest_version_number"].(float64) != 170 {
		t.Fatalf("unexpected data: %v", payload)
	}
	meta, ok := body.Meta.(map[string]any)
	if !ok || meta["baseline"].(float64) != 161 {
		t.Fatalf("unexpected meta: %v", body.Meta)
	}
}

func TestResponseFail(t *testing.T) {
	ctx, recorder := newContext("application/json")

	Fail(ctx, http.StatusBadRequest, ErrValidation, "invalid payload", gin.H{"field": "description"})

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}

	var body Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Success || body.Error == nil {
		t.Fatalf("expected error envelope, got %+v", body)
	}
	if body.Error.Code != ErrValidation || body.Error.Message != "invalid payload" {
		t.Fatalf("unexpected error: %+v", body.Error)
	}
	details, ok := body.Error.Details.(map[string]any)
	if !ok || details["field"] != "description" {
		t.Fatalf("unexpected details: %v", body.Error.Details)
	}
}

func TestWantsJSON(t *testing.T) {
	cases := map[string]bool{
		"":                                 false,
		"text/html":                        false,
		"*/*":                              false,
		"application/json":                 true,
		"text/html,application/json;q=0.9": false,
	}
	for accept, want := range cases {
		ctx, _ := newContext(accept)
		if got := WantsJSON(ctx); got != want {
			t.Fatalf("Accept %q: want %v got %v", accept, want, got)
		}
	}
}

func TestPageRendersTemplateOrJSON(t *testing.T) {
	ctx, recorder := newContext("")
	Page(ctx, http.StatusNotFound, ErrNotFound, "nothing here")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "<h1>404 Not Found</h1>") {
		t.Fatalf("expected html page, got %s", recorder.Body.String())
	}
	if !ctx.IsAborted() {
		t.Fatalf("page should abort the chain")
	}

	ctx, recorder = newContext("application/json")
	Page(ctx, http.StatusNotFound, ErrNotFound, "nothing here")
	var body Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected json body: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrNotFound {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}

	ctx, recorder = newContext("")
	Page(ctx, http.StatusConflict, ErrConflict, "taken")
	if !strings.Contains(recorder.Body.String(), `"CONFLICT"`) {
		t.Fatalf("status without template should fall back to json: %s", recorder.Body.String())
	}
}
