package database

import (
	"errors"
	"testing"

	"stash-backend/pkg/models"
)

func seedItem(t *testing.T, db *MemoryStore, id, owner string) *models.SavedItem {
	t.Helper()
	item := &models.SavedItem{
		ID:          id,
		UserEmail:   owner,
		ContentType: models.ContentTypeText,
		Title:       "seeded",
		AICategory:  "Other",
	}
	if err := db.CreateSavedItem(item); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return item
}

func TestOwnershipIsolation(t *testing.T) {
	db := NewMemoryStore()
	seedItem(t, db, "item-a", "alice@example.com")

	// 读取、更新、删除、计数：他人条目一律 ErrNotFound
	if _, err := db.GetSavedItem("bob@example.com", "item-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get by foreign owner: err = %v, want ErrNotFound", err)
	}
	if _, err := db.UpdateSavedItem("bob@example.com", "item-a", map[string]interface{}{"title": "stolen"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update by foreign owner: err = %v, want ErrNotFound", err)
	}
	if _, err := db.DeleteSavedItem("bob@example.com", "item-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete by foreign owner: err = %v, want ErrNotFound", err)
	}
	if _, err := db.IncrementItemViews("bob@example.com", "item-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Increment by foreign owner: err = %v, want ErrNotFound", err)
	}

	// 未命中的更新不得留下任何痕迹
	item, err := db.GetSavedItem("alice@example.com", "item-a")
	if err != nil {
		t.Fatalf("owner lost access: %v", err)
	}
	if item.Title != "seeded" {
		t.Errorf("Title = %q, foreign update leaked through", item.Title)
	}
	if item.ViewCount != 0 {
		t.Errorf("ViewCount = %d, foreign increment leaked through", item.ViewCount)
	}

	// 列表只包含自己的条目
	items, err := db.ListSavedItems("bob@example.com", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("foreign list returned %d items", len(items))
	}
}

func TestListFilterByCategory(t *testing.T) {
	db := NewMemoryStore()
	if err := db.CreateSavedItem(&models.SavedItem{
		ID:          "item-1",
		UserEmail:   "alice@example.com",
		ContentType: models.ContentTypeURL,
		AICategory:  "Travel",
	}); err != nil {
		t.Fatal(err)
	}
	seedItem(t, db, "item-2", "alice@example.com")

	items, err := db.ListSavedItems("alice@example.com", "Travel")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "item-1" {
		t.Errorf("filtered list = %+v", items)
	}
}

func TestIncrementItemViews(t *testing.T) {
	db := NewMemoryStore()
	seedItem(t, db, "item-a", "alice@example.com")

	item, err := db.IncrementItemViews("alice@example.com", "item-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ViewCount != 1 {
		t.Errorf("ViewCount = %d, want 1", item.ViewCount)
	}
	if item.LastViewedAt == nil {
		t.Error("LastViewedAt not set")
	}

	item, _ = db.IncrementItemViews("alice@example.com", "item-a")
	if item.ViewCount != 2 {
		t.Errorf("ViewCount = %d, want 2", item.ViewCount)
	}
}

func TestAdjustFeatureVotesClampsAtZero(t *testing.T) {
	db := NewMemoryStore()
	if err := db.CreateFeatureSuggestion(&models.FeatureSuggestion{ID: "f1", VoteCount: 1}); err != nil {
		t.Fatal(err)
	}

	if err := db.AdjustFeatureVotes("f1", -5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := db.GetFeatureSuggestion("f1")
	if err != nil {
		t.Fatal(err)
	}
	if f.VoteCount != 0 {
		t.Errorf("VoteCount = %d, want clamped 0", f.VoteCount)
	}

	if err := db.AdjustFeatureVotes("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("adjust missing: err = %v, want ErrNotFound", err)
	}
}

func TestFeatureVoteLifecycle(t *testing.T) {
	db := NewMemoryStore()

	if _, err := db.GetFeatureVote("alice@example.com", "f1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	vote := &models.FeatureVote{ID: "v1", UserEmail: "alice@example.com", FeatureID: "f1", VoteType: models.VoteUp}
	if err := db.CreateFeatureVote(vote); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetFeatureVote("alice@example.com", "f1")
	if err != nil {
		t.Fatal(err)
	}
	if got.VoteType != models.VoteUp {
		t.Errorf("VoteType = %q", got.VoteType)
	}

	got.VoteType = models.VoteDown
	if err := db.UpdateFeatureVote(got); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetFeatureVote("alice@example.com", "f1")
	if got.VoteType != models.VoteDown {
		t.Errorf("VoteType after update = %q", got.VoteType)
	}

	if err := db.DeleteFeatureVote("alice@example.com", "f1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetFeatureVote("alice@example.com", "f1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("vote still present after delete: %v", err)
	}
}
