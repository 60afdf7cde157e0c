package post

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ppiankov/spacetraveling/internal/cms"
)

func mustRecord(t *testing.T, raw string) cms.Record {
	t.Helper()
	var rec cms.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return rec
}

func newTestNormalizer(t *testing.T, df DateFormat) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(df)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	return n
}

func TestNormalize_PtBRDate(t *testing.T) {
	n := newTestNormalizer(t, DefaultDateFormat)
	rec := mustRecord(t, `{
		"uid": "como-utilizar-hooks",
		"first_publication_date": "2021-03-15T00:00:00Z",
		"data": {"title": "Como utilizar Hooks", "subtitle": "Pensando em sincronização", "author": "Joseph Oliveira"}
	}`)

	p, err := n.Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Date != "15 de março de 2021" {
		t.Errorf("date = %q, want %q", p.Date, "15 de março de 2021")
	}
	if p.UID != "como-utilizar-hooks" || p.Title != "Como utilizar Hooks" ||
		p.Subtitle != "Pensando em sincronização" || p.Author != "Joseph Oliveira" {
		t.Errorf("fields not copied verbatim: %+v", p)
	}
	want := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	if p.PublishedAt == nil || !p.PublishedAt.Equal(want) {
		t.Errorf("published_at = %v, want %v", p.PublishedAt, want)
	}
}

func TestNormalize_PrismicOffset(t *testing.T) {
	n := newTestNormalizer(t, DefaultDateFormat)
	rec := mustRecord(t, `{"uid":"x","first_publication_date":"2021-03-25T19:25:28+0000",
		"data":{"title":"t","subtitle":"s","author":"a"}}`)

	p, err := n.Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Date != "25 de março de 2021" {
		t.Errorf("date = %q", p.Date)
	}
}

func TestNormalize_Timezone(t *testing.T) {
	df := DefaultDateFormat
	df.Timezone = "America/Sao_Paulo"
	n := newTestNormalizer(t, df)
	rec := mustRecord(t, `{"uid":"x","first_publication_date":"2021-03-15T00:00:00Z",
		"data":{"title":"t","subtitle":"s","author":"a"}}`)

	p, err := n.Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Date != "14 de março de 2021" {
		t.Errorf("date = %q, want previous day in Sao Paulo", p.Date)
	}
}

func TestNormalize_SwappableFormat(t *testing.T) {
	n := newTestNormalizer(t, DateFormat{Locale: "en-US", Layout: "January 2, 2006"})
	rec := mustRecord(t, `{"uid":"x","first_publication_date":"2021-03-15T00:00:00Z",
		"data":{"title":"t","subtitle":"s","author":"a"}}`)

	p, err := n.Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Date != "March 15, 2021" {
		t.Errorf("date = %q, want March 15, 2021", p.Date)
	}
}

func TestNormalize_NullDate(t *testing.T) {
	df := DefaultDateFormat
	df.Missing = "sem data"
	n := newTestNormalizer(t, df)
	rec := mustRecord(t, `{"uid":"x","first_publication_date":null,"data":{"title":"t","subtitle":"s","author":"a"}}`)

	p, err := n.Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.PublishedAt != nil {
		t.Errorf("published_at = %v, want nil", p.PublishedAt)
	}
	if p.Date != "sem data" {
		t.Errorf("date = %q, want placeholder", p.Date)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := newTestNormalizer(t, DefaultDateFormat)
	rec := mustRecord(t, `{"uid":"x","first_publication_date":"2021-04-01T12:00:00Z",
		"data":{"title":"t","subtitle":[{"type":"paragraph","text":"rich"}],"author":"a"}}`)

	first, err := n.Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := n.Normalize(rec)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("normalize not deterministic: %+v vs %+v", first, again)
		}
	}
	if first.Subtitle != "rich" {
		t.Errorf("subtitle = %q, want rich text flattened", first.Subtitle)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	n := newTestNormalizer(t, DefaultDateFormat)

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing title", `{"uid":"x","data":{"subtitle":"s","author":"a"}}`, "data.title"},
		{"null subtitle", `{"uid":"x","data":{"title":"t","subtitle":null,"author":"a"}}`, "data.subtitle"},
		{"missing author", `{"uid":"x","data":{"title":"t","subtitle":"s"}}`, "data.author"},
		{"no data", `{"uid":"x"}`, "data.title"},
		{"bad date", `{"uid":"x","first_publication_date":"yesterday","data":{"title":"t","subtitle":"s","author":"a"}}`, FieldDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(mustRecord(t, tt.raw))
			if !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("err = %v, want ErrMalformedRecord", err)
			}
			var me *MalformedRecordError
			if !errors.As(err, &me) {
				t.Fatalf("err = %T, want *MalformedRecordError", err)
			}
			if me.Field != tt.field {
				t.Errorf("field = %q, want %q", me.Field, tt.field)
			}
			if me.UID != "x" {
				t.Errorf("uid = %q, want x", me.UID)
			}
		})
	}
}

func TestNormalizePage(t *testing.T) {
	n := newTestNormalizer(t, DefaultDateFormat)
	next := "https://blog.cdn.prismic.io/api/v2/documents/search?page=2"
	page := cms.Page{
		NextPage: &next,
		Results: []cms.Record{
			mustRecord(t, `{"uid":"a","data":{"title":"A","subtitle":"s","author":"x"}}`),
			mustRecord(t, `{"uid":"b","data":{"title":"B","subtitle":"s","author":"y"}}`),
		},
	}

	got, err := n.NormalizePage(page)
	if err != nil {
		t.Fatalf("NormalizePage: %v", err)
	}
	if got.NextCursor != next {
		t.Errorf("cursor = %q, want %q", got.NextCursor, next)
	}
	if len(got.Posts) != 2 || got.Posts[0].UID != "a" || got.Posts[1].UID != "b" {
		t.Errorf("posts out of order: %+v", got.Posts)
	}

	page.Results = append(page.Results, mustRecord(t, `{"uid":"c","data":{"title":"C"}}`))
	if _, err := n.NormalizePage(page); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestNormalizePage_Exhausted(t *testing.T) {
	n := newTestNormalizer(t, DefaultDateFormat)
	got, err := n.NormalizePage(cms.Page{})
	if err != nil {
		t.Fatalf("NormalizePage: %v", err)
	}
	if got.NextCursor != "" {
		t.Errorf("cursor = %q, want empty", got.NextCursor)
	}
	if got.Posts == nil || len(got.Posts) != 0 {
		t.Errorf("posts = %#v, want empty non-nil slice", got.Posts)
	}
}

func TestNewNormalizer_Invalid(t *testing.T) {
	tests := []DateFormat{
		{Locale: "pt-BR", Layout: ""},
		{Locale: "not a locale!", Layout: DefaultLayout},
		{Locale: "pt-BR", Layout: DefaultLayout, Timezone: "Mars/Olympus"},
	}
	for _, df := range tests {
		if _, err := NewNormalizer(df); err == nil {
			t.Errorf("NewNormalizer(%+v): expected error", df)
		}
	}
}
