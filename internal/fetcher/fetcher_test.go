package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"

	"rss_notify/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

type blockingTransport struct{}

func (blockingTransport) Do(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func TestFetch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")
	atom := loadFixture(t, "../../testdata/atom.xml")

	tests := []struct {
		name      string
		transport *mockTransport
		wantItems int
		wantFetch bool
		wantParse bool
	}{
		{
			name:      "rss feed",
			transport: &mockTransport{body: xml, statusCode: 200},
			wantItems: 5,
		},
		{
			name:      "atom feed",
			transport: &mockTransport{body: atom, statusCode: 200},
			wantItems: 2,
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantFetch: true,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantFetch: true,
		},
		{
			name:      "invalid xml",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
			wantParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const url = "https://example.com/rss"
			f := New(tt.transport, time.Second)
			items, err := f.Fetch(context.Background(), url)

			switch {
			case tt.wantFetch:
				var fe *FetchError
				if !errors.As(err, &fe) {
					t.Fatalf("expected *FetchError, got %v", err)
				}
				if diff := cmp.Diff(url, fe.URL); diff != "" {
					t.Errorf("error url mismatch (-want +got):\n%s", diff)
				}
				return
			case tt.wantParse:
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("expected *ParseError, got %v", err)
				}
				if !IsParseError(err) {
					t.Error("IsParseError() = false, want true")
				}
				if diff := cmp.Diff(url, pe.URL); diff != "" {
					t.Errorf("error url mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantItems, len(items)); diff != "" {
				t.Errorf("item count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	f := New(blockingTransport{}, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), "https://slow.example.com/rss")
		done <- err
	}()

	select {
	case err := <-done:
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not honour its timeout")
	}
}

func TestNormalize(t *testing.T) {
	pub := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	upd := time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item *gofeed.Item
		want model.Item
	}{
		{
			name: "full item",
			item: &gofeed.Item{
				Title:           " DEMO Launch ",
				Link:            "https://example.com/demo",
				Author:          &gofeed.Person{Name: "Lana Rivers"},
				Categories:      []string{"Launch", "Video"},
				PublishedParsed: &pub,
			},
			want: model.Item{
				Title:     "DEMO Launch",
				Link:      "https://example.com/demo",
				Author:    "Lana Rivers",
				Tags:      []string{"Launch", "Video"},
				Published: &pub,
			},
		},
		{
			name: "missing title defaults",
			item: &gofeed.Item{Link: "https://example.com/x"},
			want: model.Item{Title: "Untitled", Link: "https://example.com/x"},
		},
		{
			name: "missing link stays empty",
			item: &gofeed.Item{Title: "Draft"},
			want: model.Item{Title: "Draft"},
		},
		{
			name: "link falls back to links list",
			item: &gofeed.Item{Title: "Alt", Links: []string{"", "https://example.com/alt"}},
			want: model.Item{Title: "Alt", Link: "https://example.com/alt"},
		},
		{
			name: "author from authors list",
			item: &gofeed.Item{
				Title:   "Post",
				Link:    "https://example.com/p",
				Author:  &gofeed.Person{},
				Authors: []*gofeed.Person{nil, {Name: "Riley Stone"}},
			},
			want: model.Item{Title: "Post", Link: "https://example.com/p", Author: "Riley Stone"},
		},
		{
			name: "author from reference field",
			item: &gofeed.Item{
				Title:  "Post",
				Link:   "https://example.com/p",
				Author: &gofeed.Person{Email: "editor@example.com"},
			},
			want: model.Item{Title: "Post", Link: "https://example.com/p", Author: "editor@example.com"},
		},
		{
			name: "blank tags skipped and duplicates dropped",
			item: &gofeed.Item{
				Title:      "Tags",
				Link:       "https://example.com/t",
				Categories: []string{"news", "  ", "", "news", "photo"},
			},
			want: model.Item{Title: "Tags", Link: "https://example.com/t", Tags: []string{"news", "photo"}},
		},
		{
			name: "updated used when published missing",
			item: &gofeed.Item{Title: "Upd", Link: "https://example.com/u", UpdatedParsed: &upd},
			want: model.Item{Title: "Upd", Link: "https://example.com/u", Published: &upd},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.item)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeFixture(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")
	feed, err := gofeed.NewParser().ParseString(xml)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	items := NormalizeAll("https://creators.example.com/rss", feed.Items)

	var titles []string
	var authors []string
	for _, it := range items {
		titles = append(titles, it.Title)
		authors = append(authors, it.Author)
		if it.Source != "https://creators.example.com/rss" {
			t.Errorf("item %q source = %q", it.Title, it.Source)
		}
	}

	wantTitles := []string{"DEMO Launch", "Behind the Scenes", "Weekly Roundup", "Untitled", "Draft Without Link"}
	if diff := cmp.Diff(wantTitles, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	wantAuthors := []string{"Lana Rivers", "Riley Stone", "Lana Rivers", "", "Mohamed Ali"}
	if diff := cmp.Diff(wantAuthors, authors); diff != "" {
		t.Errorf("authors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Launch", "Video"}, items[0].Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if items[3].Tags != nil {
		t.Errorf("expected blank category to be skipped, got %q", items[3].Tags)
	}
	if items[4].HasIdentity() {
		t.Errorf("item without link should have no identity, got link %q", items[4].Link)
	}
}

func TestCreatorFor(t *testing.T) {
	tests := []struct {
		name   string
		item   model.Item
		want   model.Creator
		wantOK bool
	}{
		{
			name:   "author with link",
			item:   model.Item{Author: "Lana Rivers", Link: "https://example.com/a"},
			want:   model.Creator{Name: "Lana Rivers", Handle: "lana_rivers", Link: "https://example.com/a"},
			wantOK: true,
		},
		{
			name: "no author",
			item: model.Item{Link: "https://example.com/a"},
		},
		{
			name: "no link",
			item: model.Item{Author: "Mohamed Ali"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CreatorFor(tt.item)
			if diff := cmp.Diff(tt.wantOK, ok); diff != "" {
				t.Errorf("ok mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CreatorFor() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandle(t *testing.T) {
	tests := map[string]string{
		"Lana Rivers":  "lana_rivers",
		"Mohamed  Ali": "mohamed__ali",
		"single":       "single",
		"Site Team":    "site_team",
	}
	for in, want := range tests {
		if diff := cmp.Diff(want, Handle(in)); diff != "" {
			t.Errorf("Handle(%q) mismatch (-want +got):\n%s", in, diff)
		}
	}
}
