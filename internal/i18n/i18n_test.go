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
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "ErrorNotFound", "Not found"},
		{"ru", "ErrorNotFound", "Не найдено"},
		{"ru-RU", "ErrorGeneration", "Не удалось сгенерировать вопросы"},
		{"de", "ErrorInternal", "Internal server error"},
		{"en", "NoSuchMessage", "NoSuchMessage"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			if got := T(initLang(t, tt.lang), tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestTemplateData(t *testing.T) {
	ctx := initLang(t, "en")
	got := Td(ctx, "FileTooLarge", map[string]any{"Limit": 20})
	if want := "The uploaded file exceeds the 20 MiB limit."; got != want {
		t.Errorf("Td = %q, want %q", got, want)
	}
}

func TestPluralTranslation(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{"en", 1, "Generated 1 question."},
		{"en", 5, "Generated 5 questions."},
		{"ru", 1, "Сгенерирован 1 вопрос."},
		{"ru", 3, "Сгенерировано 3 вопроса."},
		{"ru", 5, "Сгенерировано 5 вопросов."},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := Tp(ctx, "QuestionsGenerated", tt.count); got != tt.want {
			t.Errorf("Tp(%s, %d) = %q, want %q", tt.lang, tt.count, got, tt.want)
		}
	}
}

func TestContextWithoutLocalizer(t *testing.T) {
	initLang(t, "en")
	if got := T(context.Background(), "ErrorNotFound"); got != "Not found" {
		t.Errorf("T = %q", got)
	}
}

func TestDefaultLanguage(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { Init("en") })
	if got := T(context.Background(), "ErrorNotFound"); got != "Не найдено" {
		t.Errorf("T with ru default = %q", got)
	}
}

func TestInitBadLanguage(t *testing.T) {
	if err := Init("not a tag!"); err == nil {
		t.Error("expected error")
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")
	langs := Languages()
	if !slices.Contains(langs, "en") || !slices.Contains(langs, "ru") {
		t.Errorf("Languages = %v", langs)
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrorNotFound")
	}))

	tests := []struct {
		name   string
		url    string
		accept string
		want   string
	}{
		{"header", "/", "ru-RU,ru;q=0.9,en;q=0.8", "Не найдено"},
		{"query overrides header", "/?lang=en", "ru", "Not found"},
		{"default", "/", "", "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
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
