package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "DemoGrammarTitle"); got != "B2 Grammar Mix" {
		t.Errorf("T(DemoGrammarTitle) = %q, want 'B2 Grammar Mix'", got)
	}
	if got := T(ctx, "ErrInvalidSubmission"); got != "Invalid or expired submission token." {
		t.Errorf("T(ErrInvalidSubmission) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "ErrTextRequired"); got != "Текст обязателен." {
		t.Errorf("T(ErrTextRequired) = %q, want 'Текст обязателен.'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ErrBodyTooLarge", map[string]any{"Limit": 64})
	if got != "Request body exceeds 64 KiB." {
		t.Errorf("Td(ErrBodyTooLarge, Limit=64) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNoLocalizerInContext(t *testing.T) {
	initLang(t, "ru")

	if got := T(context.Background(), "ErrNotFound"); got != "Not found." {
		t.Errorf("T without localizer = %q, want English", got)
	}
}

func TestInitRejectsBadTag(t *testing.T) {
	if err := Init("not a language!"); err == nil {
		t.Fatal("Init should reject an unparsable tag")
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")

	langs := Languages()
	for _, want := range []string{"en", "ru"} {
		if !slices.Contains(langs, want) {
			t.Errorf("Languages() = %v, missing %s", langs, want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrNotFound")
	}))

	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{"default", "", "Not found."},
		{"russian header", "ru-RU,ru;q=0.9,en;q=0.8", "Не найдено."},
		{"unsupported header", "de-DE", "Not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
