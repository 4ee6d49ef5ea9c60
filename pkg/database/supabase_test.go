package database

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"stash-backend/pkg/models"
)

// fakeRow 返回一行测试数据（PostgREST 总是返回数组）
func fakeRow(viewCount int) []models.SavedItem {
	now := time.Now().UTC()
	return []models.SavedItem{{
		ID:          "11111111-1111-1111-1111-111111111111",
		UserEmail:   "alice@example.com",
		ContentType: models.ContentTypeText,
		Title:       "Saved Note",
		AICategory:  "Other",
		ViewCount:   viewCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
}

// TestIncrementItemViewsRPCPayload 固定RPC载荷的命名参数。
// PostgREST 按形参名匹配函数，键名必须与
// increment_item_views(p_owner_email TEXT, p_item_id UUID) 完全一致，
// 否则每次调用都404并退化为非原子回退。
func TestIncrementItemViewsRPCPayload(t *testing.T) {
	var rpcCalls, otherCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/rest/v1/rpc/increment_item_views" {
			rpcCalls++

			var args map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
				t.Fatalf("invalid rpc body: %v", err)
			}

			keys := make([]string, 0, len(args))
			for k := range args {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			// 模拟PostgREST：参数名不匹配即找不到函数
			if len(keys) != 2 || keys[0] != "p_item_id" || keys[1] != "p_owner_email" {
				t.Errorf("rpc params sent: %v, want [p_item_id p_owner_email]", keys)
				w.WriteHeader(http.StatusNotFound)
				return
			}

			if args["p_owner_email"] != "alice@example.com" {
				t.Errorf("p_owner_email = %v", args["p_owner_email"])
			}
			if args["p_item_id"] != "11111111-1111-1111-1111-111111111111" {
				t.Errorf("p_item_id = %v", args["p_item_id"])
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(fakeRow(5))
			return
		}

		// RPC成功后不应再有任何读-改-写请求
		otherCalls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := NewSupabaseStore(server.URL, "test-key")

	item, err := store.IncrementItemViews("alice@example.com", "11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("IncrementItemViews() error = %v", err)
	}
	if item.ViewCount != 5 {
		t.Errorf("ViewCount = %d, want 5", item.ViewCount)
	}
	if rpcCalls != 1 {
		t.Errorf("rpc calls = %d, want 1", rpcCalls)
	}
	if otherCalls != 0 {
		t.Errorf("extra requests after successful rpc = %d, want 0", otherCalls)
	}
}

// TestIncrementItemViewsRPCEmptyResult RPC成功但无匹配行（不存在或不属于该用户）
func TestIncrementItemViewsRPCEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	store := NewSupabaseStore(server.URL, "test-key")

	if _, err := store.IncrementItemViews("mallory@example.com", "11111111-1111-1111-1111-111111111111"); err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// TestIncrementItemViewsFallback RPC不可用时退回读-改-写
func TestIncrementItemViewsFallback(t *testing.T) {
	var gets, patches int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/rest/v1/rpc/increment_item_views":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/saved_items":
			gets++
			json.NewEncoder(w).Encode(fakeRow(4))
		case r.Method == http.MethodPatch && r.URL.Path == "/rest/v1/saved_items":
			patches++
			var patch map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				t.Fatalf("invalid patch body: %v", err)
			}
			if got, ok := patch["view_count"].(float64); !ok || int(got) != 5 {
				t.Errorf("patched view_count = %v, want 5", patch["view_count"])
			}
			json.NewEncoder(w).Encode(fakeRow(5))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	store := NewSupabaseStore(server.URL, "test-key")

	item, err := store.IncrementItemViews("alice@example.com", "11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("IncrementItemViews() error = %v", err)
	}
	if item.ViewCount != 5 {
		t.Errorf("ViewCount = %d, want 5", item.ViewCount)
	}
	if gets != 1 || patches != 1 {
		t.Errorf("gets = %d, patches = %d, want 1 each", gets, patches)
	}
}
