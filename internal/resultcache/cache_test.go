package resultcache

import (
	"testing"
	"time"

	"fragwatch/internal/checker"
	"fragwatch/internal/source"
)

func sampleResult(userID int64, items ...checker.Item) checker.Result {
	return checker.Result{UserID: userID, StartedAt: time.Now(), Items: items}
}

func TestPutReplaces(t *testing.T) {
	t.Parallel()
	c := New()

	c.Put(1, sampleResult(1, checker.Item{Number: "888000000001", Status: source.StatusAvailable}))
	c.Put(1, sampleResult(1, checker.Item{Number: "888000000002", Status: source.StatusRestricted}))

	res, ok := c.Get(1)
	if !ok {
		t.Fatal("expected cached result")
	}
	if len(res.Items) != 1 || res.Items[0].Number != "888000000002" {
		t.Fatalf("Put did not replace: %v", res.Items)
	}
}

func TestGetUnknownUser(t *testing.T) {
	t.Parallel()
	c := New()
	if _, ok := c.Get(99); ok {
		t.Fatal("expected miss for unknown user")
	}
}

func TestFilterRestrictedOnly(t *testing.T) {
	t.Parallel()
	c := New()
	c.Put(1, sampleResult(1,
		checker.Item{Number: "888000000001", Status: source.StatusAvailable},
		checker.Item{Number: "888000000002", Status: source.StatusRestricted},
		checker.Item{Number: "888000000003", Status: source.StatusError},
	))

	got, ok := c.Filter(1, func(it checker.Item) bool { return it.Status == source.StatusRestricted })
	if !ok {
		t.Fatal("expected cached result")
	}
	if len(got) != 1 || got[0].Number != "888000000002" {
		t.Fatalf("Filter = %v", got)
	}

	if _, ok := c.Filter(2, func(checker.Item) bool { return true }); ok {
		t.Fatal("expected miss for user without cache")
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	c := New()
	c.Put(1, sampleResult(1))
	c.Delete(1)
	if _, ok := c.Get(1); ok {
		t.Fatal("expected miss after delete")
	}
}
