package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "sub", "feeds.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := openTemp(t)
	const url = "https://example.com/feed.csv"

	if _, ok, err := c.Get(url); err != nil || ok {
		t.Fatalf("empty cache Get = ok %v err %v", ok, err)
	}

	changed, err := c.Put(Entry{URL: url, ETag: `"v1"`, LastModified: "Mon, 01 Apr 2024 10:00:00 GMT", Body: []byte("a,b\n1,2\n")})
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("first Put should report changed")
	}

	e, ok, err := c.Get(url)
	if err != nil || !ok {
		t.Fatalf("Get = ok %v err %v", ok, err)
	}
	if string(e.Body) != "a,b\n1,2\n" || e.ETag != `"v1"` || e.SHA256 != Hash([]byte("a,b\n1,2\n")) {
		t.Errorf("entry = %+v", e)
	}
	if e.FetchedAt.IsZero() || e.CheckedAt.IsZero() {
		t.Error("timestamps not set")
	}

	changed, err = c.Put(Entry{URL: url, ETag: `"v2"`, Body: []byte("a,b\n1,2\n")})
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("identical body should not report changed")
	}
	changed, _ = c.Put(Entry{URL: url, Body: []byte("a,b\n3,4\n")})
	if !changed {
		t.Error("new body should report changed")
	}

	if n, _ := c.FeedCount(); n != 1 {
		t.Errorf("FeedCount = %d, want 1", n)
	}
}

func TestTouchAndList(t *testing.T) {
	c := openTemp(t)
	fetched := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	if _, err := c.Put(Entry{URL: "b", Body: []byte("x"), FetchedAt: fetched}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put(Entry{URL: "a", Body: []byte("yy"), FetchedAt: fetched}); err != nil {
		t.Fatal(err)
	}

	later := fetched.Add(time.Hour)
	if err := c.Touch("b", later); err != nil {
		t.Fatal(err)
	}

	list, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].URL != "a" || list[1].URL != "b" {
		t.Fatalf("List = %+v", list)
	}
	if list[0].SizeBytes != 2 {
		t.Errorf("SizeBytes = %d, want 2", list[0].SizeBytes)
	}
	if !list[1].CheckedAt.Equal(later) || !list[1].FetchedAt.Equal(fetched) {
		t.Errorf("b times = fetched %v checked %v", list[1].FetchedAt, list[1].CheckedAt)
	}

	if err := c.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.FeedCount(); n != 1 {
		t.Errorf("FeedCount after delete = %d", n)
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.FeedCount(); n != 0 {
		t.Errorf("FeedCount after clear = %d", n)
	}
}

func TestFetchLog(t *testing.T) {
	c := openTemp(t)
	for i, status := range []int{200, 304, 500} {
		f := Fetch{URL: "u", Status: status, SizeBytes: i * 10, Duration: 1500 * time.Millisecond}
		if status == 500 {
			f.Err = "server error"
		}
		if err := c.LogFetch(f); err != nil {
			t.Fatal(err)
		}
	}

	got, err := c.RecentFetches(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentFetches = %d entries, want 2", len(got))
	}
	if got[0].Status != 500 || got[0].Err != "server error" || got[1].Status != 304 {
		t.Errorf("order/contents = %+v", got)
	}
	if got[0].Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v", got[0].Duration)
	}
}
